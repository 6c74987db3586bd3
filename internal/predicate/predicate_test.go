package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/ir"
)

func TestAssertCondition(t *testing.T) {
	tests := []struct {
		name     string
		value    ir.Value
		op       ir.Operator
		pattern  string
		expected bool
	}{
		{"exists with value", ir.String("x"), ir.OpExists, "", true},
		{"exists nil", nil, ir.OpExists, "", false},
		{"exists empty string", ir.String(""), ir.OpExists, "", true},
		{"notexists nil", nil, ir.OpNotExists, "", true},
		{"notexists value", ir.Long(0), ir.OpNotExists, "", false},

		{"equals string", ir.String("open"), ir.OpEquals, "open", true},
		{"equals string case", ir.String("Open"), ir.OpEquals, "open", false},
		{"equals long decimal", ir.Long(1), ir.OpEquals, "1", true},
		{"equals long mismatch", ir.Long(10), ir.OpEquals, "1", false},
		{"equals bool never", ir.Bool(true), ir.OpEquals, "true", false},
		{"equals nil", nil, ir.OpEquals, "", false},
		{"notequals nil", nil, ir.OpNotEquals, "x", true},
		{"notequals same", ir.String("x"), ir.OpNotEquals, "x", false},
		{"notequals bool", ir.Bool(true), ir.OpNotEquals, "true", true},

		{"equalsignorecase string", ir.String("HIGH"), ir.OpEqualsIgnoreCase, "high", true},
		{"equalsignorecase long", ir.Long(42), ir.OpEqualsIgnoreCase, "42", true},
		{"equalsignorecase instant", ir.Instant{}, ir.OpEqualsIgnoreCase, "", false},

		{"contains", ir.String("issue (EWM-999)"), ir.OpContains, "EWM", true},
		{"contains missing", ir.String("issue"), ir.OpContains, "EWM", false},
		{"contains long never", ir.Long(123), ir.OpContains, "2", false},
		{"notcontains long", ir.Long(123), ir.OpNotContains, "2", true},
		{"notcontains present", ir.String("abc"), ir.OpNotContains, "b", false},

		{"true bool", ir.Bool(true), ir.OpTrue, "", true},
		{"true string", ir.String("TRUE"), ir.OpTrue, "", true},
		{"true other string", ir.String("yes"), ir.OpTrue, "", false},
		{"true long", ir.Long(1), ir.OpTrue, "", false},
		{"false bool", ir.Bool(false), ir.OpFalse, "", true},
		{"false string", ir.String("False"), ir.OpFalse, "", true},
		{"false nil", nil, ir.OpFalse, "", false},

		{"empty nil", nil, ir.OpEmpty, "", true},
		{"empty string", ir.String(""), ir.OpEmpty, "", true},
		{"empty whitespace", ir.String(" "), ir.OpEmpty, "", false},
		{"empty long", ir.Long(0), ir.OpEmpty, "", false},
		{"notempty string", ir.String("a"), ir.OpNotEmpty, "", true},
		{"notempty nil", nil, ir.OpNotEmpty, "", false},

		{"regex finds anywhere", ir.String("issue (EWM-999) reported"), ir.OpMatchRegex, `(EWM-\d+)`, true},
		{"regex no match", ir.String("issue"), ir.OpMatchRegex, `EWM-\d+`, false},
		{"regex not full match", ir.String("xx12yy"), ir.OpMatchRegex, `\d+`, true},
		{"regex long", ir.Long(12), ir.OpMatchRegex, `\d+`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssertCondition("subject", tt.value, tt.op, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAssertConditionUnsupportedOperator(t *testing.T) {
	_, err := AssertCondition("severity", ir.Long(1), "BETWEEN", "1")
	require.Error(t, err)
	assert.True(t, ir.IsProgrammingError(err))
	assert.Contains(t, err.Error(), "BETWEEN")
}

func TestAssertConditionInvalidRegex(t *testing.T) {
	_, err := AssertCondition("title", ir.String("x"), ir.OpMatchRegex, "(")
	require.Error(t, err)
	assert.True(t, ir.IsConfigError(err))
}

func TestNegationsAreComplements(t *testing.T) {
	values := []ir.Value{nil, ir.String(""), ir.String("abc"), ir.Long(7), ir.Bool(true), ir.StringList{"a"}}
	pairs := [][2]ir.Operator{
		{ir.OpExists, ir.OpNotExists},
		{ir.OpEquals, ir.OpNotEquals},
		{ir.OpContains, ir.OpNotContains},
		{ir.OpEmpty, ir.OpNotEmpty},
	}

	for _, v := range values {
		for _, pair := range pairs {
			a, err := AssertCondition("s", v, pair[0], "b")
			require.NoError(t, err)
			b, err := AssertCondition("s", v, pair[1], "b")
			require.NoError(t, err)
			assert.NotEqual(t, a, b, "%s/%s on %#v", pair[0], pair[1], v)
		}
	}
}
