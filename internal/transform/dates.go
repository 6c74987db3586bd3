package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/roach88/brix/internal/ir"
)

// Date patterns are Go reference layouts ("2006-01-02 15:04:05") unless
// they contain a '%', in which case they are strftime formats
// ("%Y-%m-%d %H:%M:%S"). An empty pattern means RFC 3339.

func isStrftime(pattern string) bool {
	return strings.Contains(pattern, "%")
}

// parseDate reads a system date value as an instant. Zone-less values are
// read as UTC.
func parseDate(value ir.Value, pattern string) (ir.Value, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case ir.Instant:
		return v, nil
	}

	s := strings.TrimSpace(ir.FormatValue(value))
	var (
		t   time.Time
		err error
	)
	switch {
	case pattern == "":
		t, err = time.Parse(time.RFC3339Nano, s)
	case isStrftime(pattern):
		t, err = strftime.Parse(pattern, s)
	default:
		t, err = time.ParseInLocation(pattern, s, time.UTC)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %q with pattern %q: %w", s, pattern, err)
	}
	return ir.NewInstant(t), nil
}

// formatDate renders a generic instant with the pattern, in UTC.
// Strings that already hold a recognizable instant are accepted.
func formatDate(value ir.Value, pattern string) (ir.Value, error) {
	var t time.Time
	switch v := value.(type) {
	case nil:
		return nil, nil
	case ir.Instant:
		t = v.Time
	case ir.String:
		parsed, ok := ir.ParseInstant(string(v))
		if !ok {
			return nil, fmt.Errorf("value %q is not an instant", string(v))
		}
		t = parsed
	default:
		return nil, fmt.Errorf("value of type %T is not an instant", value)
	}

	t = t.UTC()
	switch {
	case pattern == "":
		return ir.String(t.Format(time.RFC3339Nano)), nil
	case isStrftime(pattern):
		return ir.String(strftime.Format(pattern, t)), nil
	default:
		return ir.String(t.Format(pattern)), nil
	}
}
