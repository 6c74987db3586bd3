package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/brix/internal/ir"
)

// CompileRoutes compiles every route under the top-level "route" field,
// in declaration order.
//
//	route: "se-sync": { ... }
//	route: "se-escalate": { ... }
func CompileRoutes(v cue.Value) (ir.RouteSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	routesVal := v.LookupPath(cue.ParsePath("route"))
	if !routesVal.Exists() {
		return ir.RouteSet{}, nil
	}

	iter, err := routesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var routes ir.RouteSet
	for iter.Next() {
		route, err := CompileRoute(iter.Value())
		if err != nil {
			return nil, err
		}
		routes = append(routes, *route)
	}
	return routes, nil
}

// CompileRoute parses a CUE value into a BRoute.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the route struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`route: "se-sync": { ... }`)
//	r, err := CompileRoute(v.LookupPath(cue.ParsePath(`route."se-sync"`)))
//
// Artifact maps are keyed by artifact type, then by system attribute name:
//
//	source_maps: SEISSUE: {
//		state: {generic: "status", type: "ENUM", values: {Open: "open"}}
//	}
//
// Rules are keyed by name. Conditions ("when") and actions ("then") are
// lists; a missing sequence defaults to the 1-based list position.
func CompileRoute(v cue.Value) (*ir.BRoute, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	route := &ir.BRoute{}

	// Route name from struct label, e.g. `route: "se-sync": {...}`.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		route.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	if route.Source, err = parseEndpoint(v, "source"); err != nil {
		return nil, err
	}
	if route.Target, err = parseEndpoint(v, "target"); err != nil {
		return nil, err
	}
	if route.SourceMaps, err = parseArtifactMaps(v, "source_maps", ir.SideSource); err != nil {
		return nil, err
	}
	if route.TargetMaps, err = parseArtifactMaps(v, "target_maps", ir.SideTarget); err != nil {
		return nil, err
	}
	if route.Rules, err = parseRules(v); err != nil {
		return nil, err
	}

	return route, nil
}

// parseEndpoint extracts a required endpoint block.
func parseEndpoint(v cue.Value, field string) (ir.Endpoint, error) {
	epVal := v.LookupPath(cue.ParsePath(field))
	if !epVal.Exists() {
		return ir.Endpoint{}, &CompileError{
			Field:   field,
			Message: field + " endpoint is required",
			Pos:     v.Pos(),
		}
	}

	var ep ir.Endpoint
	var err error
	if ep.Name, err = requiredString(epVal, "name", field+".name"); err != nil {
		return ir.Endpoint{}, err
	}
	if ep.URI, err = optionalString(epVal, "uri"); err != nil {
		return ir.Endpoint{}, err
	}
	if ep.FetchArtifactURI, err = optionalString(epVal, "fetch_artifact_uri"); err != nil {
		return ir.Endpoint{}, err
	}
	systemType, err := requiredString(epVal, "system_type", field+".system_type")
	if err != nil {
		return ir.Endpoint{}, err
	}
	ep.SystemType = ir.SystemType(systemType)

	credVal := epVal.LookupPath(cue.ParsePath("credential"))
	if credVal.Exists() {
		if ep.Credential.User, err = optionalString(credVal, "user"); err != nil {
			return ir.Endpoint{}, err
		}
		if ep.Credential.Secret, err = optionalString(credVal, "secret"); err != nil {
			return ir.Endpoint{}, err
		}
	}

	return ep, nil
}

// parseArtifactMaps extracts the per-artifact-type attribute maps of one side.
func parseArtifactMaps(v cue.Value, field string, side ir.ResourceSide) ([]ir.ArtifactMap, error) {
	mapsVal := v.LookupPath(cue.ParsePath(field))
	if !mapsVal.Exists() {
		return nil, nil
	}

	iter, err := mapsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var maps []ir.ArtifactMap
	for iter.Next() {
		am := ir.ArtifactMap{
			ArtifactType: ir.ArtifactType(iter.Label()),
			Side:         side,
		}

		attrIter, err := iter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for attrIter.Next() {
			fieldPath := fmt.Sprintf("%s.%s.%s", field, iter.Label(), attrIter.Label())
			entry, err := parseAttrMap(attrIter.Value(), attrIter.Label(), fieldPath, side)
			if err != nil {
				return nil, err
			}
			am.AttributeMaps = append(am.AttributeMaps, entry)
		}

		maps = append(maps, am)
	}
	return maps, nil
}

// parseAttrMap parses one attribute mapping. A bare string is shorthand for
// {generic: "<name>"} with type STRING.
func parseAttrMap(v cue.Value, name, field string, side ir.ResourceSide) (ir.GenAttrMap, error) {
	entry := ir.GenAttrMap{AttributeName: name, Type: ir.AttrString}

	if generic, err := v.String(); err == nil {
		entry.GenericName = generic
		return entry, nil
	}

	var err error
	if entry.GenericName, err = requiredString(v, "generic", field+".generic"); err != nil {
		return entry, err
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if typeVal.Exists() {
		s, err := typeVal.String()
		if err != nil {
			return entry, formatCUEError(err)
		}
		if entry.Type, err = ir.ParseAttributeType(s); err != nil {
			return entry, &CompileError{Field: field + ".type", Message: err.Error(), Pos: typeVal.Pos()}
		}
	}

	if entry.Traits, err = parseTraits(v); err != nil {
		return entry, err
	}

	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if valuesVal.Exists() {
		iter, err := valuesVal.Fields()
		if err != nil {
			return entry, formatCUEError(err)
		}
		for iter.Next() {
			generic, err := iter.Value().String()
			if err != nil {
				return entry, formatCUEError(err)
			}
			entry.ValueMaps = append(entry.ValueMaps, ir.GenValueMap{
				Side:           side,
				AttributeValue: iter.Label(),
				GenericValue:   generic,
			})
		}
	}

	return entry, nil
}

// parseRules extracts rules keyed by name. A missing sequence defaults to
// the declaration position.
func parseRules(v cue.Value) ([]ir.Rule, error) {
	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, nil
	}

	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []ir.Rule
	for i := 1; iter.Next(); i++ {
		ruleVal := iter.Value()
		rule := ir.Rule{Name: iter.Label()}
		field := "rules." + rule.Name

		if rule.Sequence, err = optionalInt(ruleVal, "sequence", i); err != nil {
			return nil, err
		}
		if rule.Conditions, err = parseConditions(ruleVal, field); err != nil {
			return nil, err
		}
		if rule.Actions, err = parseActionConfigs(ruleVal, field); err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}
	return rules, nil
}

// parseConditions extracts the "when" list. The predicate type defaults to
// ATTRIBUTE.
func parseConditions(v cue.Value, field string) ([]ir.RuleCondition, error) {
	whenVal := v.LookupPath(cue.ParsePath("when"))
	if !whenVal.Exists() {
		return nil, nil
	}

	iter, err := whenVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var conds []ir.RuleCondition
	for i := 1; iter.Next(); i++ {
		cv := iter.Value()
		cf := fmt.Sprintf("%s.when[%d]", field, i-1)
		c := ir.RuleCondition{PredicateType: ir.PredicateAttribute}

		if c.Sequence, err = optionalInt(cv, "sequence", i); err != nil {
			return nil, err
		}
		if c.Name, err = optionalString(cv, "name"); err != nil {
			return nil, err
		}
		if s, err := optionalString(cv, "predicate"); err != nil {
			return nil, err
		} else if s != "" {
			if c.PredicateType, err = ir.ParsePredicateType(s); err != nil {
				return nil, enumError(cv, "predicate", cf, err)
			}
		}
		if s, err := optionalString(cv, "side"); err != nil {
			return nil, err
		} else if s != "" {
			if c.Side, err = ir.ParseResourceSide(s); err != nil {
				return nil, enumError(cv, "side", cf, err)
			}
		}
		if c.Subject, err = optionalString(cv, "subject"); err != nil {
			return nil, err
		}
		op, err := requiredString(cv, "operator", cf+".operator")
		if err != nil {
			return nil, err
		}
		if c.Operator, err = ir.ParseOperator(op); err != nil {
			return nil, enumError(cv, "operator", cf, err)
		}
		if c.Pattern, err = optionalString(cv, "pattern"); err != nil {
			return nil, err
		}

		conds = append(conds, c)
	}
	return conds, nil
}

// parseActionConfigs extracts the "then" list.
func parseActionConfigs(v cue.Value, field string) ([]ir.RuleActionConfig, error) {
	thenVal := v.LookupPath(cue.ParsePath("then"))
	if !thenVal.Exists() {
		return nil, nil
	}

	iter, err := thenVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var configs []ir.RuleActionConfig
	for i := 1; iter.Next(); i++ {
		av := iter.Value()
		af := fmt.Sprintf("%s.then[%d]", field, i-1)
		var a ir.RuleActionConfig

		if a.Sequence, err = optionalInt(av, "sequence", i); err != nil {
			return nil, err
		}
		if a.Name, err = optionalString(av, "name"); err != nil {
			return nil, err
		}
		cmd, err := requiredString(av, "command", af+".command")
		if err != nil {
			return nil, err
		}
		if a.Command, err = ir.ParseActionCommand(cmd); err != nil {
			return nil, enumError(av, "command", af, err)
		}
		side, err := requiredString(av, "side", af+".side")
		if err != nil {
			return nil, err
		}
		if a.Side, err = ir.ParseResourceSide(side); err != nil {
			return nil, enumError(av, "side", af, err)
		}

		if a.Config.ParamName, err = optionalString(av, "param"); err != nil {
			return nil, err
		}
		if a.Config.DefaultValue, err = optionalString(av, "default"); err != nil {
			return nil, err
		}
		reqVal := av.LookupPath(cue.ParsePath("required"))
		if reqVal.Exists() {
			if a.Config.Required, err = reqVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if a.Config.Traits, err = parseTraits(av); err != nil {
			return nil, err
		}

		configs = append(configs, a)
	}
	return configs, nil
}

// parseTraits reads an optional "traits" struct of strings.
func parseTraits(v cue.Value) (ir.Traits, error) {
	traitsVal := v.LookupPath(cue.ParsePath("traits"))
	if !traitsVal.Exists() {
		return nil, nil
	}

	iter, err := traitsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	traits := ir.Traits{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		traits[iter.Label()] = s
	}
	return traits, nil
}

func requiredString(v cue.Value, path, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, path string, def int) (int, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return def, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func enumError(v cue.Value, path, field string, err error) error {
	return &CompileError{
		Field:   field + "." + path,
		Message: err.Error(),
		Pos:     v.LookupPath(cue.ParsePath(path)).Pos(),
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with position info.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
