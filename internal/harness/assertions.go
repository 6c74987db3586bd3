package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string    // Assertion type for categorization
	Expected string    // Human-readable expected outcome
	Actual   string    // Human-readable actual outcome
	Outcomes []Outcome // Outcomes for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Outcomes) > 0 {
		fmt.Fprintf(&buf, "\nPlans:\n")
		for _, o := range e.Outcomes {
			if o.Err != nil {
				fmt.Fprintf(&buf, "  [event %d] error: %v\n", o.Event, o.Err)
				continue
			}
			for _, p := range o.Plans {
				fmt.Fprintf(&buf, "  [event %d] %s fired=%v actions=%s\n", o.Event, p.Route, p.Fired, describeActions(p.Actions))
			}
		}
	}

	return buf.String()
}

func describeActions(actions []ir.Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = fmt.Sprintf("%s/%s%v", a.Command, a.Side, a.Artifact.Attributes.Names())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func describeEvent(event *int) string {
	if event == nil {
		return "any event"
	}
	return fmt.Sprintf("event %d", *event)
}

// assertFired checks whether the rule fired (want true) or did not (want
// false) in the selected outcomes.
func assertFired(outcomes []Outcome, assertion Assertion, want bool) error {
	fired := false
	for _, o := range outcomes {
		if slices.Contains(o.Fired(), assertion.Rule) {
			fired = true
			break
		}
	}
	if fired == want {
		return nil
	}

	expected := fmt.Sprintf("rule %s fired in %s", assertion.Rule, describeEvent(assertion.Event))
	actual := "rule did not fire"
	if !want {
		expected = fmt.Sprintf("rule %s not fired in %s", assertion.Rule, describeEvent(assertion.Event))
		actual = "rule fired"
	}
	return &AssertionError{Type: assertion.Type, Expected: expected, Actual: actual, Outcomes: outcomes}
}

// assertAction checks that one action matches every field the assertion
// sets. Attributes use subset semantics.
func assertAction(outcomes []Outcome, assertion Assertion) error {
	for _, o := range outcomes {
		for _, a := range o.Actions() {
			if actionMatches(a, assertion) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type: assertion.Type,
		Expected: fmt.Sprintf("%s action (side=%q key=%q rule=%q attributes=%v) in %s",
			assertion.Command, assertion.Side, assertion.Key, assertion.Rule, assertion.Attributes, describeEvent(assertion.Event)),
		Actual:   "no matching action",
		Outcomes: outcomes,
	}
}

func actionMatches(a ir.Action, assertion Assertion) bool {
	if !strings.EqualFold(string(a.Command), assertion.Command) {
		return false
	}
	if assertion.Side != "" && !strings.EqualFold(string(a.Side), assertion.Side) {
		return false
	}
	if assertion.Key != "" && string(a.ArtifactKey) != assertion.Key {
		return false
	}
	if assertion.Rule != "" && a.Rule != assertion.Rule {
		return false
	}
	return matchAttributes(a.Artifact.Attributes, assertion.Attributes)
}

// matchAttributes checks if actual contains all expected attributes with
// equal values (subset match). Extra attributes in actual are ignored.
func matchAttributes(actual ir.Attributes, expected map[string]any) bool {
	for name, raw := range expected {
		props, ok := actual.Get(name)
		if !ok {
			return false
		}
		want, err := ir.FromAny(raw)
		if err != nil {
			return false
		}
		if !valuesEqual(props.Value, want) {
			return false
		}
	}
	return true
}

// assertActionCount checks the total number of actions.
func assertActionCount(outcomes []Outcome, assertion Assertion) error {
	count := 0
	for _, o := range outcomes {
		count += len(o.Actions())
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("%d actions in %s", assertion.Count, describeEvent(assertion.Event)),
			Actual:   fmt.Sprintf("%d actions", count),
			Outcomes: outcomes,
		}
	}
	return nil
}

// assertWarning checks that a warning with the code was raised. When the
// assertion names an attribute, the warning must be about it.
func assertWarning(outcomes []Outcome, assertion Assertion) error {
	var seen []string
	for _, o := range outcomes {
		for _, p := range o.Plans {
			for _, w := range p.Warnings {
				if string(w.Code) == assertion.Code && (assertion.Attribute == "" || w.Attribute == assertion.Attribute) {
					return nil
				}
				seen = append(seen, w.String())
			}
		}
	}

	actual := "no warnings"
	if len(seen) > 0 {
		actual = strings.Join(seen, "; ")
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("warning %s (attribute=%q) in %s", assertion.Code, assertion.Attribute, describeEvent(assertion.Event)),
		Actual:   actual,
		Outcomes: outcomes,
	}
}

// assertHeader checks that some plan's header set holds the value.
func assertHeader(outcomes []Outcome, assertion Assertion) error {
	want, err := ir.FromAny(assertion.Value)
	if err != nil {
		return fmt.Errorf("header assertion %s: %w", assertion.Header, err)
	}

	var seen []string
	for _, o := range outcomes {
		for _, p := range o.Plans {
			got := p.Headers.Get(assertion.Header)
			if valuesEqual(got, want) {
				return nil
			}
			seen = append(seen, fmt.Sprintf("%v", got))
		}
	}

	return &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("header %s = %v in %s", assertion.Header, want, describeEvent(assertion.Event)),
		Actual:   fmt.Sprintf("values %v", seen),
		Outcomes: outcomes,
	}
}

// assertRecordedRuns checks the number of runs in the store, optionally
// for one route.
func assertRecordedRuns(ctx context.Context, st *store.Store, assertion Assertion) error {
	runs, err := st.ListRuns(ctx, assertion.Route)
	if err != nil {
		return &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("%d recorded runs", assertion.Count),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(runs) != assertion.Count {
		route := "all routes"
		if assertion.Route != "" {
			route = "route " + assertion.Route
		}
		return &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("%d recorded runs for %s", assertion.Count, route),
			Actual:   fmt.Sprintf("%d recorded runs", len(runs)),
		}
	}
	return nil
}

// valuesEqual compares two values for equality.
func valuesEqual(actual, expected ir.Value) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for recorded_runs assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error
		outcomes := result.outcomes(assertion.Event)

		switch assertion.Type {
		case AssertFired:
			err = assertFired(outcomes, assertion, true)
		case AssertNotFired:
			err = assertFired(outcomes, assertion, false)
		case AssertAction:
			err = assertAction(outcomes, assertion)
		case AssertActionCount:
			err = assertActionCount(outcomes, assertion)
		case AssertWarning:
			err = assertWarning(outcomes, assertion)
		case AssertHeader:
			err = assertHeader(outcomes, assertion)
		case AssertRecordedRuns:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: recorded_runs requires database context", i)
			} else {
				err = assertRecordedRuns(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
