package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/brix/internal/ir"
)

// ActionList is the ordered output of one action pass.
type ActionList struct {
	Actions  []ir.Action
	Warnings []ir.Warning
}

// Size returns the number of actions.
func (l ActionList) Size() int {
	return len(l.Actions)
}

// GenerateActions turns fired rules into an ordered action list.
//
// Rules run in ascending sequence and each rule's action configs in
// ascending sequence. Every config builds at most one candidate action;
// candidates are merged or appended per the grouping precedence in grouper.
// Appended actions get strictly increasing sequence numbers.
//
// delta must be a private copy of the full run delta, not the copy rule
// assertion claimed from. Attributes picked up by an action are removed from
// it, so each attribute lands in at most one action. relationships may be
// empty, in which case actions carry no artifact key.
func GenerateActions(route *ir.BRoute, fired []ir.Rule, delta *ir.GenericArtifact, relationships []ir.ArtifactRelationship) (ActionList, error) {
	return generateActions(slog.Default(), route, fired, delta, relationships)
}

func generateActions(logger *slog.Logger, route *ir.BRoute, fired []ir.Rule, delta *ir.GenericArtifact, relationships []ir.ArtifactRelationship) (ActionList, error) {
	if route == nil {
		return ActionList{}, ir.NewConfigError("", "no route to generate actions for")
	}

	g := newGrouper(logger)
	var warnings []ir.Warning

	for _, rule := range ir.SortRules(fired) {
		g.startRule()
		for _, cfg := range rule.SortedActions() {
			action, warn, err := buildAction(route, rule, cfg, delta, relationships)
			if err != nil {
				return ActionList{}, ir.WithRoute(err, route.Name)
			}
			if warn != nil {
				warnings = append(warnings, *warn)
				logger.Warn("action skipped",
					"route", route.Name,
					"rule", rule.Name,
					"attribute", warn.Attribute,
					"reason", warn.Message,
				)
			}
			if action == nil {
				continue
			}
			g.add(cfg, *action)
		}
	}

	logger.Info("actions generated",
		"route", route.Name,
		"rules", len(fired),
		"actions", len(g.actions),
	)
	return ActionList{Actions: g.actions, Warnings: warnings}, nil
}

// buildAction builds the candidate for one config. A nil action with a nil
// error means the config contributes nothing.
func buildAction(route *ir.BRoute, rule ir.Rule, cfg ir.RuleActionConfig, delta *ir.GenericArtifact, relationships []ir.ArtifactRelationship) (*ir.Action, *ir.Warning, error) {
	endpoint, ok := route.Endpoint(cfg.Side)
	if !ok {
		return nil, nil, ir.NewProgrammingError("rule %q action %q: unsupported resource side %q", rule.Name, cfg.Name, cfg.Side)
	}

	action := ir.Action{
		Name:         cfg.Name,
		Rule:         rule.Name,
		Command:      cfg.Command,
		Side:         cfg.Side,
		EndpointURI:  endpoint.URI,
		SystemType:   endpoint.SystemType,
		Credential:   endpoint.Credential,
		ArtifactType: delta.Type,
		Artifact:     ir.NewGenericArtifact(),
	}
	if len(relationships) > 0 {
		ref, _ := relationships[0].Ref(cfg.Side)
		action.ArtifactKey = ref.Key
	}

	switch cfg.Command {
	case ir.CmdCreateArtifact, ir.CmdAddLink, ir.CmdRemoveLink:
		return &action, nil, nil
	case ir.CmdChangeState, ir.CmdModifyAttribute, ir.CmdAddComment:
		props, ok := takeParam(cfg.Config, delta)
		if !ok {
			return nil, &ir.Warning{
				Code:      ir.WarnMissingAttribute,
				Attribute: cfg.Config.ParamName,
				Message:   fmt.Sprintf("%s action %q: attribute not in delta", cfg.Command, cfg.Name),
			}, nil
		}
		action.Artifact.Put(cfg.Config.ParamName, props)
		return &action, nil, nil
	default:
		return nil, nil, ir.NewProgrammingError("rule %q action %q: unsupported command %q", rule.Name, cfg.Name, cfg.Command)
	}
}

// takeParam removes the config's parameter attribute from delta and returns
// it. A required config synthesizes a STRING default when the attribute is
// absent, and replaces a blank value with the default; a non-blank value is
// kept as is.
func takeParam(cfg ir.ActionCommandConfig, delta *ir.GenericArtifact) (ir.AttributeProperties, bool) {
	name := cfg.ParamName
	props, found := delta.Attributes.Get(name)

	switch {
	case found && cfg.Required && props.IsBlank():
		props = ir.NewAttribute(ir.String(cfg.DefaultValue), ir.AttrString, props.Traits)
	case found:
		props = props.Clone()
	case cfg.Required:
		props = ir.NewAttribute(ir.String(cfg.DefaultValue), ir.AttrString, nil)
	default:
		return ir.AttributeProperties{}, false
	}

	delta.Remove(name)
	return props, true
}
