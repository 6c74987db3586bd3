package predicate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/brix/internal/ir"
)

// patterns caches compiled MATCHREGEX patterns. Patterns come from route
// configuration, so the set is bounded.
var patterns sync.Map // string -> *regexp.Regexp

// AssertCondition evaluates one condition against a subject value.
//
// subject is only used for error context. value is nil when the subject
// has no value.
func AssertCondition(subject string, value ir.Value, op ir.Operator, pattern string) (bool, error) {
	switch op {
	case ir.OpExists:
		return value != nil, nil
	case ir.OpNotExists:
		return value == nil, nil
	case ir.OpEquals:
		return equals(value, pattern), nil
	case ir.OpNotEquals:
		return !equals(value, pattern), nil
	case ir.OpEqualsIgnoreCase:
		return equalsIgnoreCase(value, pattern), nil
	case ir.OpContains:
		return contains(value, pattern), nil
	case ir.OpNotContains:
		return !contains(value, pattern), nil
	case ir.OpTrue:
		return isBool(value, true), nil
	case ir.OpFalse:
		return isBool(value, false), nil
	case ir.OpEmpty:
		return isEmpty(value), nil
	case ir.OpNotEmpty:
		return !isEmpty(value), nil
	case ir.OpMatchRegex:
		return matchRegex(subject, value, pattern)
	default:
		return false, ir.NewProgrammingError("unsupported operator %q on subject %q", op, subject)
	}
}

// asText renders strings as-is and integers in decimal. Other types are
// never compared with a pattern.
func asText(value ir.Value) (string, bool) {
	switch v := value.(type) {
	case ir.String:
		return string(v), true
	case ir.Long:
		return strconv.FormatInt(int64(v), 10), true
	default:
		return "", false
	}
}

func equals(value ir.Value, pattern string) bool {
	s, ok := asText(value)
	return ok && s == pattern
}

// equalsIgnoreCase folds case for strings only; integers still need an
// exact decimal match.
func equalsIgnoreCase(value ir.Value, pattern string) bool {
	switch v := value.(type) {
	case ir.String:
		return strings.EqualFold(string(v), pattern)
	default:
		return equals(value, pattern)
	}
}

func contains(value ir.Value, pattern string) bool {
	s, ok := value.(ir.String)
	return ok && strings.Contains(string(s), pattern)
}

func isBool(value ir.Value, want bool) bool {
	switch v := value.(type) {
	case ir.Bool:
		return bool(v) == want
	case ir.String:
		return strings.EqualFold(string(v), strconv.FormatBool(want))
	default:
		return false
	}
}

func isEmpty(value ir.Value) bool {
	switch v := value.(type) {
	case nil:
		return true
	case ir.String:
		return len(v) == 0
	default:
		return false
	}
}

// matchRegex reports whether the pattern matches anywhere in a string value.
// An invalid pattern is a configuration error.
func matchRegex(subject string, value ir.Value, pattern string) (bool, error) {
	s, ok := value.(ir.String)
	if !ok {
		return false, nil
	}
	re, err := compile(pattern)
	if err != nil {
		return false, &ir.SyncError{
			Kind:      ir.KindConfig,
			Message:   fmt.Sprintf("invalid MATCHREGEX pattern %q", pattern),
			Attribute: subject,
			Err:       err,
		}
	}
	return re.MatchString(string(s)), nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}
