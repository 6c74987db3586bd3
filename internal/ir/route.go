package ir

import (
	"cmp"
	"slices"
)

// GenValueMap maps one enum value between a system side and the generic form.
type GenValueMap struct {
	Side           ResourceSide `json:"side"`
	AttributeValue string       `json:"attribute_value"`
	GenericValue   string       `json:"generic_value"`
}

// GenAttrMap maps one system attribute to one generic attribute.
type GenAttrMap struct {
	AttributeName string        `json:"attribute_name"`
	GenericName   string        `json:"generic_name"`
	Type          AttributeType `json:"type"`
	Traits        Traits        `json:"traits,omitempty"`
	ValueMaps     []GenValueMap `json:"value_maps,omitempty"`
}

// ArtifactMap is the ordered attribute mapping for one artifact type on one side.
type ArtifactMap struct {
	ArtifactType  ArtifactType `json:"artifact_type"`
	Side          ResourceSide `json:"side"`
	AttributeMaps []GenAttrMap `json:"attribute_maps"`
}

// RuleCondition is one predicate of a rule.
type RuleCondition struct {
	Sequence      int           `json:"sequence"`
	Name          string        `json:"name,omitempty"`
	PredicateType PredicateType `json:"predicate_type"`
	Side          ResourceSide  `json:"side,omitempty"`
	Subject       string        `json:"subject"`
	Operator      Operator      `json:"operator"`
	Pattern       string        `json:"pattern,omitempty"`
}

// ActionCommandConfig parameterizes one action config.
type ActionCommandConfig struct {
	Name         string `json:"name,omitempty"`
	ParamName    string `json:"param_name,omitempty"`
	Required     bool   `json:"required,omitempty"`
	DefaultValue string `json:"default_value,omitempty"`
	Traits       Traits `json:"traits,omitempty"`
}

// Group returns the merge bucket named by the group trait, if any.
func (c ActionCommandConfig) Group() (string, bool) {
	g, ok := c.Traits.Get(TraitGroup)
	return g, ok && g != ""
}

// RuleActionConfig describes one action a fired rule emits.
type RuleActionConfig struct {
	Sequence int                 `json:"sequence"`
	Name     string              `json:"name,omitempty"`
	Command  ActionCommand       `json:"command"`
	Side     ResourceSide        `json:"side"`
	Config   ActionCommandConfig `json:"config"`
}

// Rule is an ordered conjunction of conditions plus the actions to take
// when all of them hold.
type Rule struct {
	Sequence   int                `json:"sequence"`
	Name       string             `json:"name"`
	Conditions []RuleCondition    `json:"conditions"`
	Actions    []RuleActionConfig `json:"actions"`
}

// SortedConditions returns a copy of the conditions in ascending sequence.
// Ties keep their configured order.
func (r Rule) SortedConditions() []RuleCondition {
	out := slices.Clone(r.Conditions)
	slices.SortStableFunc(out, func(a, b RuleCondition) int { return cmp.Compare(a.Sequence, b.Sequence) })
	return out
}

// SortedActions returns a copy of the action configs in ascending sequence.
// Ties keep their configured order.
func (r Rule) SortedActions() []RuleActionConfig {
	out := slices.Clone(r.Actions)
	slices.SortStableFunc(out, func(a, b RuleActionConfig) int { return cmp.Compare(a.Sequence, b.Sequence) })
	return out
}

// SortRules returns a copy of rules in ascending sequence.
// Ties keep their configured order.
func SortRules(rules []Rule) []Rule {
	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b Rule) int { return cmp.Compare(a.Sequence, b.Sequence) })
	return out
}

// BRoute pairs a source and target endpoint with attribute maps and rules.
// A BRoute is read-only once compiled.
type BRoute struct {
	Name       string        `json:"name"`
	Source     Endpoint      `json:"source"`
	Target     Endpoint      `json:"target"`
	SourceMaps []ArtifactMap `json:"source_maps"`
	TargetMaps []ArtifactMap `json:"target_maps"`
	Rules      []Rule        `json:"rules"`
}

// Endpoint returns the endpoint on the given side.
func (r *BRoute) Endpoint(side ResourceSide) (Endpoint, bool) {
	switch side {
	case SideSource:
		return r.Source, true
	case SideTarget:
		return r.Target, true
	default:
		return Endpoint{}, false
	}
}

// ArtifactMap returns the attribute mapping for an artifact type on a side.
func (r *BRoute) ArtifactMap(side ResourceSide, t ArtifactType) (ArtifactMap, bool) {
	var maps []ArtifactMap
	switch side {
	case SideSource:
		maps = r.SourceMaps
	case SideTarget:
		maps = r.TargetMaps
	}
	for _, m := range maps {
		if m.ArtifactType == t {
			return m, true
		}
	}
	return ArtifactMap{}, false
}

// RouteSet is the full route configuration, in configured order.
type RouteSet []BRoute

// MatchSource returns every route whose source endpoint has the given name.
func (s RouteSet) MatchSource(endpoint string) []*BRoute {
	var out []*BRoute
	for i := range s {
		if s[i].Source.Name == endpoint {
			out = append(out, &s[i])
		}
	}
	return out
}

// Lookup returns the route with the given name.
func (s RouteSet) Lookup(name string) (*BRoute, bool) {
	for i := range s {
		if s[i].Name == name {
			return &s[i], true
		}
	}
	return nil, false
}
