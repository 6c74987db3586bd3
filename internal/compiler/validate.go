package compiler

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/roach88/brix/internal/ir"
)

// Validation error codes (E120-E129)
const (
	ErrRouteSchema     = "E120" // structural check from ir.BRoute.Validate
	ErrDuplicateRoute  = "E121" // two routes share a name
	ErrInvalidPattern  = "E122" // MATCHREGEX pattern does not compile
	ErrUnknownSubject  = "E123" // ATTRIBUTE condition names an unmapped generic attribute
	ErrUnknownParam    = "E124" // action param names an unmapped generic attribute
	ErrMissingArtifact = "E125" // side has no artifact map
)

// ValidationError represents a route validation error.
type ValidationError struct {
	Route   string `json:"route,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Route != "" {
		return fmt.Sprintf("[%s] route %q: %s: %s", e.Code, e.Route, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled route set.
// Returns all errors found (does not fail-fast).
func Validate(routes ir.RouteSet) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)
	for i := range routes {
		r := &routes[i]

		// E121: duplicate route name
		if r.Name != "" && seen[r.Name] {
			errs = append(errs, ValidationError{
				Route:   r.Name,
				Field:   fmt.Sprintf("routes[%d].name", i),
				Message: fmt.Sprintf("duplicate route name %q", r.Name),
				Code:    ErrDuplicateRoute,
			})
		}
		seen[r.Name] = true

		errs = append(errs, validateRoute(r)...)
	}

	return errs
}

// validateRoute runs the schema checks plus the cross-reference checks
// between rules and attribute maps.
func validateRoute(r *ir.BRoute) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{
			Route:   r.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	// E120: schema
	for _, e := range r.Validate() {
		add(ErrRouteSchema, e.Field, "%s", e.Message)
	}

	// E125: each side needs at least one artifact map
	if len(r.SourceMaps) == 0 {
		add(ErrMissingArtifact, "source_maps", "source side has no artifact map")
	}
	if len(r.TargetMaps) == 0 {
		add(ErrMissingArtifact, "target_maps", "target side has no artifact map")
	}

	generics := map[ir.ResourceSide][]string{
		ir.SideSource: genericNames(r.SourceMaps),
		ir.SideTarget: genericNames(r.TargetMaps),
	}

	for i, rule := range r.Rules {
		field := fmt.Sprintf("rules[%d]", i)

		for j, c := range rule.Conditions {
			cf := fmt.Sprintf("%s.conditions[%d]", field, j)

			// E122: regex must compile
			if c.Operator == ir.OpMatchRegex {
				if _, err := regexp.Compile(c.Pattern); err != nil {
					add(ErrInvalidPattern, cf+".pattern", "invalid regular expression %q: %v", c.Pattern, err)
				}
			}

			// E123: attribute subjects must be mapped on their side
			if c.PredicateType == ir.PredicateAttribute {
				names, ok := generics[c.Side]
				if ok && !slices.Contains(names, c.Subject) {
					add(ErrUnknownSubject, cf+".subject", "attribute %q is not mapped on the %s side", c.Subject, c.Side)
				}
			}
		}

		// E124: action params come from the source-side delta
		for j, a := range rule.Actions {
			if a.Config.ParamName == "" {
				continue
			}
			if !slices.Contains(generics[ir.SideSource], a.Config.ParamName) {
				add(ErrUnknownParam, fmt.Sprintf("%s.actions[%d].config.param_name", field, j),
					"param %q is not mapped on the source side", a.Config.ParamName)
			}
		}
	}

	return errs
}

func genericNames(maps []ir.ArtifactMap) []string {
	var names []string
	for _, m := range maps {
		for _, e := range m.AttributeMaps {
			names = append(names, e.GenericName)
		}
	}
	return names
}
