package engine

import (
	"log/slog"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/predicate"
)

// Assertion is the result of one rule pass.
type Assertion struct {
	// Fired lists the rules that asserted true, in processing order.
	Fired []ir.Rule

	// Consumed maps each delta attribute claimed by a fired rule to that
	// rule's name. An attribute is claimed by the first rule only.
	Consumed map[string]string
}

// AnyFired reports whether at least one rule asserted true.
func (a Assertion) AnyFired() bool {
	return len(a.Fired) > 0
}

// FiredNames returns the names of the fired rules in order.
func (a Assertion) FiredNames() []string {
	names := make([]string, len(a.Fired))
	for i, r := range a.Fired {
		names[i] = r.Name
	}
	return names
}

// AssertRules evaluates rules against one run's inputs.
//
// Rules run in ascending sequence and each rule's conditions in ascending
// sequence. A rule fires only if every condition holds; evaluation stops at
// the first false condition. Conditions are always evaluated against source,
// target and headers, never against delta.
//
// An EXISTS condition on an ATTRIBUTE predicate that holds names the
// attribute the rule governs. When the rule fires that attribute is removed
// from delta and recorded in Consumed; a later rule governing the same
// attribute still fires but claims nothing.
//
// delta is modified in place and must be a copy private to this call. It is
// not the copy action generation reads. source and target are the
// normalized artifacts of the run and are only read. headers supplies
// EXCHANGEHEADER subjects.
func AssertRules(rules []ir.Rule, delta *ir.GenericArtifact, source, target ir.GenericArtifact, headers ir.Headers) (Assertion, error) {
	return assertRules(slog.Default(), rules, delta, source, target, headers)
}

func assertRules(logger *slog.Logger, rules []ir.Rule, delta *ir.GenericArtifact, source, target ir.GenericArtifact, headers ir.Headers) (Assertion, error) {
	out := Assertion{Consumed: make(map[string]string)}

	for _, rule := range ir.SortRules(rules) {
		fired, governs, err := assertRule(rule, source, target, headers)
		if err != nil {
			return Assertion{}, err
		}
		if !fired {
			logger.Debug("rule did not fire", "rule", rule.Name)
			continue
		}

		out.Fired = append(out.Fired, rule)
		claimed := governs != "" && delta.Remove(governs)
		if claimed {
			out.Consumed[governs] = rule.Name
		}
		logger.Debug("rule fired",
			"rule", rule.Name,
			"governs", governs,
			"claimed", claimed,
		)
	}

	return out, nil
}

// assertRule evaluates one rule. It returns whether the rule holds and the
// last attribute an EXISTS condition matched.
func assertRule(rule ir.Rule, source, target ir.GenericArtifact, headers ir.Headers) (bool, string, error) {
	var governs string
	for _, cond := range rule.SortedConditions() {
		var value ir.Value
		switch cond.PredicateType {
		case ir.PredicateAttribute:
			artifact, err := sideArtifact(cond.Side, source, target)
			if err != nil {
				return false, "", err
			}
			value = artifact.Attributes.Value(cond.Subject)
		case ir.PredicateExchangeHeader:
			value = headers.Get(cond.Subject)
		case ir.PredicateClass:
			return false, "", nil
		default:
			return false, "", ir.NewProgrammingError("rule %q: unsupported predicate type %q", rule.Name, cond.PredicateType)
		}

		ok, err := predicate.AssertCondition(cond.Subject, value, cond.Operator, cond.Pattern)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, "", nil
		}
		if cond.PredicateType == ir.PredicateAttribute && cond.Operator == ir.OpExists {
			governs = cond.Subject
		}
	}
	return true, governs, nil
}

func sideArtifact(side ir.ResourceSide, source, target ir.GenericArtifact) (ir.GenericArtifact, error) {
	switch side {
	case ir.SideSource:
		return source, nil
	case ir.SideTarget:
		return target, nil
	default:
		return ir.GenericArtifact{}, ir.NewProgrammingError("unsupported resource side %q", side)
	}
}
