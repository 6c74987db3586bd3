package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value is a sealed interface over the attribute value representations.
// Only String, Long, Bool, Instant, and StringList implement it.
// A nil Value means "no value".
type Value interface {
	irValue() // Sealed
}

// String is a plain, multi-line, enum, identity or delimited multi-value string.
type String string

func (String) irValue() {}

// Long is a 64-bit integer value.
type Long int64

func (Long) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Instant is a point in time. Equality compares the instant, not the
// representation or location.
type Instant struct {
	time.Time
}

func (Instant) irValue() {}

// NewInstant wraps t as an Instant in UTC.
func NewInstant(t time.Time) Instant {
	return Instant{Time: t.UTC()}
}

// StringList is an already-split multi-value.
type StringList []string

func (StringList) irValue() {}

// InstantLayout is the representation of an Instant in JSON and in
// FormatValue.
const InstantLayout = time.RFC3339Nano

// FormatValue renders v as a plain string. Nil renders as "".
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case String:
		return string(val)
	case Long:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Instant:
		return val.UTC().Format(InstantLayout)
	case StringList:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(v)
	}
}

// CloneValue returns a copy of v that shares no memory with it.
func CloneValue(v Value) Value {
	if list, ok := v.(StringList); ok {
		return append(StringList(nil), list...)
	}
	return v
}

// ToAny converts v into plain Go data suitable for JSON, YAML, CBOR and
// canonical encoding. Instants become RFC 3339 strings.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case String:
		return string(val)
	case Long:
		return int64(val)
	case Bool:
		return bool(val)
	case Instant:
		return val.UTC().Format(InstantLayout)
	case StringList:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

// FromAny converts decoded JSON or YAML data into a Value.
// Integral floats are accepted because generic decoders produce them;
// fractional numbers are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Long(val), nil
	case int64:
		return Long(val), nil
	case int32:
		return Long(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d out of range", val)
		}
		return Long(val), nil
	case float64:
		if val != math.Trunc(val) || math.Abs(val) > math.MaxInt64 {
			return nil, fmt.Errorf("fractional numbers are not attribute values: %v", val)
		}
		return Long(int64(val)), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("fractional numbers are not attribute values: %s", val)
		}
		return Long(n), nil
	case time.Time:
		return NewInstant(val), nil
	case []string:
		return append(StringList(nil), val...), nil
	case []any:
		list := make(StringList, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("list element %d: expected string, got %T", i, elem)
			}
			list[i] = s
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value type %T", v)
	}
}

// CoerceValue converts raw into the representation expected for t.
// DATE strings in RFC 3339 become Instants and MULTIVALUE lists stay lists.
// Other values pass through FromAny unchanged.
func CoerceValue(raw any, t AttributeType) (Value, error) {
	v, err := FromAny(raw)
	if err != nil || v == nil {
		return v, err
	}
	if t == AttrDate {
		if s, ok := v.(String); ok {
			if ts, err := time.Parse(InstantLayout, string(s)); err == nil {
				return NewInstant(ts), nil
			}
		}
	}
	return v, nil
}

// InferType picks an AttributeType for a value given without one.
func InferType(v Value) AttributeType {
	switch v.(type) {
	case String:
		return AttrString
	case Long:
		return AttrLong
	case Bool:
		return AttrBoolean
	case Instant:
		return AttrDate
	case StringList:
		return AttrMultiValue
	default:
		return AttrUnknown
	}
}
