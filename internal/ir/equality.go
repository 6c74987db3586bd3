package ir

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// multiValueSeparator splits delimited multi-values on runs of ";", ",", "|"
// and whitespace.
var multiValueSeparator = regexp.MustCompile(`[;,|\s]+`)

// lineBreak matches any line boundary.
var lineBreak = regexp.MustCompile(`\r\n|[\n\v\f\r\x{0085}\x{2028}\x{2029}]`)

// dateLayouts are tried, in order, when a DATE comparison meets a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ValueEquals compares two attributes using the equality semantics of a's
// type. An unset type is treated as UNKNOWN. Values whose representation
// does not fit the type compare unequal.
func ValueEquals(a, b AttributeProperties) bool {
	switch a.Type.OrUnknown() {
	case AttrMultiValue:
		s1, ok1 := multiValues(a.Value)
		s2, ok2 := multiValues(b.Value)
		return ok1 && ok2 && sameSet(s1, s2)
	case AttrMultiLine:
		s1, ok1 := a.Value.(String)
		s2, ok2 := b.Value.(String)
		return ok1 && ok2 && normalizeMultiLine(string(s1)) == normalizeMultiLine(string(s2))
	case AttrIdentity, AttrString, AttrEnum:
		s1, ok1 := a.Value.(String)
		s2, ok2 := b.Value.(String)
		return ok1 && ok2 && s1 == s2
	case AttrLong:
		n1, ok1 := a.Value.(Long)
		n2, ok2 := b.Value.(Long)
		return ok1 && ok2 && n1 == n2
	case AttrDate:
		t1, ok1 := instantOf(a.Value)
		t2, ok2 := instantOf(b.Value)
		return ok1 && ok2 && t1.Equal(t2)
	case AttrBoolean:
		b1, ok1 := boolOf(a.Value)
		b2, ok2 := boolOf(b.Value)
		return ok1 && ok2 && b1 == b2
	default:
		return rawEquals(a.Value, b.Value)
	}
}

// SplitMultiValue splits a delimited multi-value string into its non-empty
// items.
func SplitMultiValue(s string) []string {
	items := multiValueSeparator.Split(strings.TrimSpace(s), -1)
	return slices.DeleteFunc(items, func(item string) bool { return item == "" })
}

func multiValues(v Value) ([]string, bool) {
	switch val := v.(type) {
	case String:
		return SplitMultiValue(string(val)), true
	case StringList:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func sameSet(a, b []string) bool {
	set := func(items []string) []string {
		out := slices.Clone(items)
		slices.Sort(out)
		return slices.Compact(out)
	}
	return slices.Equal(set(a), set(b))
}

// normalizeMultiLine trims every line, drops trailing blank lines and joins
// the rest with "\n".
func normalizeMultiLine(s string) string {
	lines := lineBreak.Split(s, -1)
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func instantOf(v Value) (time.Time, bool) {
	switch val := v.(type) {
	case Instant:
		return val.Time, true
	case String:
		return ParseInstant(string(val))
	default:
		return time.Time{}, false
	}
}

// ParseInstant parses s with the common date layouts, reading zone-less
// values as UTC.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// boolOf accepts Bool values and strings, where only a case-insensitive
// "true" is true.
func boolOf(v Value) (bool, bool) {
	switch val := v.(type) {
	case Bool:
		return bool(val), true
	case String:
		return strings.EqualFold(string(val), "true"), true
	default:
		return false, false
	}
}

func rawEquals(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Instant:
		y, ok := b.(Instant)
		return ok && x.Equal(y.Time)
	case StringList:
		y, ok := b.(StringList)
		return ok && slices.Equal(x, y)
	default:
		return a == b
	}
}
