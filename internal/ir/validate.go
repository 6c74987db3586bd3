package ir

import (
	"fmt"
	"slices"
)

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a route against the configuration schema.
// Returns all errors (not fail-fast) for better feedback.
func (r *BRoute) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if r.Name == "" {
		add("name", "route name is required")
	}
	if r.Source.Name == "" {
		add("source.name", "source endpoint name is required")
	}
	if r.Target.Name == "" {
		add("target.name", "target endpoint name is required")
	}

	for _, group := range []struct {
		field string
		side  ResourceSide
		maps  []ArtifactMap
	}{
		{"source_maps", SideSource, r.SourceMaps},
		{"target_maps", SideTarget, r.TargetMaps},
	} {
		seenTypes := map[ArtifactType]bool{}
		for i, m := range group.maps {
			field := fmt.Sprintf("%s[%d]", group.field, i)
			if seenTypes[m.ArtifactType] {
				add(field+".artifact_type", "duplicate artifact map for type %q", m.ArtifactType)
			}
			seenTypes[m.ArtifactType] = true
			errs = append(errs, validateAttributeMaps(field, m.AttributeMaps)...)
		}
	}

	for i, rule := range r.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if rule.Name == "" {
			add(field+".name", "rule name is required")
		}
		for j, c := range rule.Conditions {
			cf := fmt.Sprintf("%s.conditions[%d]", field, j)
			if !slices.Contains(PredicateTypes, c.PredicateType) {
				add(cf+".predicate_type", "invalid predicate type %q", c.PredicateType)
			}
			if !slices.Contains(Operators, c.Operator) {
				add(cf+".operator", "invalid operator %q", c.Operator)
			}
			if c.PredicateType == PredicateAttribute && !slices.Contains(ResourceSides, c.Side) {
				add(cf+".side", "attribute conditions need side SOURCE or TARGET, got %q", c.Side)
			}
			if c.Subject == "" && c.PredicateType != PredicateClass {
				add(cf+".subject", "subject is required")
			}
		}
		for j, a := range rule.Actions {
			af := fmt.Sprintf("%s.actions[%d]", field, j)
			if !slices.Contains(ActionCommands, a.Command) {
				add(af+".command", "invalid action command %q", a.Command)
			}
			if !slices.Contains(ResourceSides, a.Side) {
				add(af+".side", "invalid resource side %q", a.Side)
			}
			switch a.Command {
			case CmdChangeState, CmdModifyAttribute, CmdAddComment:
				if a.Config.ParamName == "" {
					add(af+".config.param_name", "%s requires a param name", a.Command)
				}
			}
		}
	}

	return errs
}

func validateAttributeMaps(field string, entries []GenAttrMap) []ValidationError {
	var errs []ValidationError
	seen := map[string]bool{}
	for i, e := range entries {
		ef := fmt.Sprintf("%s.attribute_maps[%d]", field, i)
		if e.AttributeName == "" {
			errs = append(errs, ValidationError{Field: ef + ".attribute_name", Message: "attribute name is required"})
		}
		if e.GenericName == "" {
			errs = append(errs, ValidationError{Field: ef + ".generic_name", Message: "generic name is required"})
		}
		if seen[e.GenericName] {
			errs = append(errs, ValidationError{Field: ef + ".generic_name", Message: fmt.Sprintf("duplicate generic name %q", e.GenericName)})
		}
		seen[e.GenericName] = true
		if e.Type != "" && !slices.Contains(AttributeTypes, e.Type) {
			errs = append(errs, ValidationError{Field: ef + ".type", Message: fmt.Sprintf("invalid attribute type %q", e.Type)})
		}
		for j, vm := range e.ValueMaps {
			if !slices.Contains(ResourceSides, vm.Side) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.value_maps[%d].side", ef, j),
					Message: fmt.Sprintf("invalid resource side %q", vm.Side),
				})
			}
		}
	}
	return errs
}
