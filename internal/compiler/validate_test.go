package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/testutil"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_FixtureRouteIsValid(t *testing.T) {
	errs := Validate(ir.RouteSet{*testutil.Route()})
	assert.Empty(t, errs)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ir.BRoute)
		code   string
		field  string
	}{
		{
			name:   "schema",
			mutate: func(r *ir.BRoute) { r.Source.Name = "" },
			code:   ErrRouteSchema,
			field:  "source.name",
		},
		{
			name:   "invalid regex",
			mutate: func(r *ir.BRoute) { r.Rules[0].Conditions[1].Pattern = "(unclosed" },
			code:   ErrInvalidPattern,
			field:  "rules[0].conditions[1].pattern",
		},
		{
			name:   "unmapped subject",
			mutate: func(r *ir.BRoute) { r.Rules[0].Conditions[0].Subject = "priority" },
			code:   ErrUnknownSubject,
			field:  "rules[0].conditions[0].subject",
		},
		{
			name:   "unmapped target subject",
			mutate: func(r *ir.BRoute) { r.Rules[0].Conditions[0].Side = ir.SideTarget; r.Rules[0].Conditions[0].Subject = "description" },
			code:   ErrUnknownSubject,
			field:  "rules[0].conditions[0].subject",
		},
		{
			name:   "unmapped param",
			mutate: func(r *ir.BRoute) { r.Rules[0].Actions[0].Config.ParamName = "priority" },
			code:   ErrUnknownParam,
			field:  "rules[0].actions[0].config.param_name",
		},
		{
			name:   "no target map",
			mutate: func(r *ir.BRoute) { r.TargetMaps = nil },
			code:   ErrMissingArtifact,
			field:  "target_maps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.Route()
			tt.mutate(r)

			errs := Validate(ir.RouteSet{*r})
			require.Len(t, errs, 1, "got %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, "se-sync", errs[0].Route)
		})
	}
}

func TestValidate_HeaderConditionsSkipSubjectCheck(t *testing.T) {
	r := testutil.Route()
	r.Rules[0].Conditions = append(r.Rules[0].Conditions, ir.RuleCondition{
		Sequence:      3,
		PredicateType: ir.PredicateExchangeHeader,
		Subject:       "CreateTarget",
		Operator:      ir.OpEquals,
		Pattern:       "true",
	})

	assert.Empty(t, Validate(ir.RouteSet{*r}))
}

func TestValidate_DuplicateRoute(t *testing.T) {
	errs := Validate(ir.RouteSet{*testutil.Route(), *testutil.Route()})
	assert.Equal(t, []string{ErrDuplicateRoute}, codes(errs))
}

func TestValidate_CollectsAll(t *testing.T) {
	r := testutil.Route()
	r.Name = ""
	r.Rules[0].Conditions[1].Pattern = "["
	r.Rules[0].Actions[0].Config.ParamName = "nope"

	errs := Validate(ir.RouteSet{*r})
	assert.ElementsMatch(t, []string{ErrRouteSchema, ErrInvalidPattern, ErrUnknownParam}, codes(errs))
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Route: "r", Field: "rules[0].name", Message: "rule name is required", Code: ErrRouteSchema}
	assert.Equal(t, `[E120] route "r": rules[0].name: rule name is required`, e.Error())
}
