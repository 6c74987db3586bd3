// Package testutil holds deterministic helpers and fixtures shared by
// package tests.
package testutil

import (
	"github.com/roach88/brix/internal/ir"
)

// Endpoint names used by the fixture route.
const (
	SourceEndpoint = "se-source"
	TargetEndpoint = "se-target"
)

// Route returns a fresh simple-endpoint to simple-endpoint route with one
// artifact map per side and the severity rule:
//
//	severity EQUALS "1" AND description_text MATCHREGEX "(EWM-\d+)"
//	  -> MODIFYATTRIBUTE severity on TARGET
func Route() *ir.BRoute {
	statusValues := []ir.GenValueMap{
		{Side: ir.SideSource, AttributeValue: "Open", GenericValue: "open"},
		{Side: ir.SideSource, AttributeValue: "Closed", GenericValue: "closed"},
		{Side: ir.SideTarget, AttributeValue: "NEW", GenericValue: "open"},
		{Side: ir.SideTarget, AttributeValue: "DONE", GenericValue: "closed"},
	}

	return &ir.BRoute{
		Name: "se-sync",
		Source: ir.Endpoint{
			Name:             SourceEndpoint,
			URI:              "http://source.example/api",
			FetchArtifactURI: "http://source.example/api/issues",
			SystemType:       ir.SystemSimpleEndpoint,
			Credential:       ir.Credential{User: "src-bot", Secret: "src-token"},
		},
		Target: ir.Endpoint{
			Name:             TargetEndpoint,
			URI:              "http://target.example/api",
			FetchArtifactURI: "http://target.example/api/issues",
			SystemType:       ir.SystemSimpleEndpoint,
			Credential:       ir.Credential{User: "tgt-bot", Secret: "tgt-token"},
		},
		SourceMaps: []ir.ArtifactMap{{
			ArtifactType: ir.ArtifactSEIssue,
			Side:         ir.SideSource,
			AttributeMaps: []ir.GenAttrMap{
				{AttributeName: "severity", GenericName: "severity", Type: ir.AttrLong},
				{AttributeName: "description_text", GenericName: "description_text", Type: ir.AttrString},
				{AttributeName: "title", GenericName: "title", Type: ir.AttrString},
				{AttributeName: "state", GenericName: "status", Type: ir.AttrEnum, ValueMaps: statusValues},
				{AttributeName: "created", GenericName: "created", Type: ir.AttrDate, Traits: ir.Traits{ir.TraitPattern: "2006-01-02 15:04:05"}},
				{AttributeName: "tags", GenericName: "labels", Type: ir.AttrMultiValue},
			},
		}},
		TargetMaps: []ir.ArtifactMap{{
			ArtifactType: ir.ArtifactSEIssue,
			Side:         ir.SideTarget,
			AttributeMaps: []ir.GenAttrMap{
				{AttributeName: "sev", GenericName: "severity", Type: ir.AttrLong},
				{AttributeName: "body", GenericName: "description_text", Type: ir.AttrString},
				{AttributeName: "summary", GenericName: "title", Type: ir.AttrString},
				{AttributeName: "workflow", GenericName: "status", Type: ir.AttrEnum, ValueMaps: statusValues},
				{AttributeName: "opened", GenericName: "created", Type: ir.AttrDate, Traits: ir.Traits{ir.TraitPattern: "%Y/%m/%d %H:%M"}},
				{AttributeName: "labels", GenericName: "labels", Type: ir.AttrMultiValue},
				{AttributeName: "headline", GenericName: "headline", Type: ir.AttrString, Traits: ir.Traits{ir.TraitCompose: "${summary} (sev ${sev})"}},
			},
		}},
		Rules: []ir.Rule{{
			Sequence: 1,
			Name:     "severity-sync",
			Conditions: []ir.RuleCondition{
				{Sequence: 1, PredicateType: ir.PredicateAttribute, Side: ir.SideSource, Subject: "severity", Operator: ir.OpEquals, Pattern: "1"},
				{Sequence: 2, PredicateType: ir.PredicateAttribute, Side: ir.SideSource, Subject: "description_text", Operator: ir.OpMatchRegex, Pattern: `(EWM-\d+)`},
			},
			Actions: []ir.RuleActionConfig{
				{Sequence: 1, Command: ir.CmdModifyAttribute, Side: ir.SideTarget, Config: ir.ActionCommandConfig{ParamName: "severity"}},
			},
		}},
	}
}

// SourceArtifact returns a source-side issue with the given attributes.
func SourceArtifact(key string, attrs ir.Attributes) ir.Artifact {
	r := Route()
	return ir.Artifact{Endpoint: r.Source, Type: ir.ArtifactSEIssue, Key: ir.ArtifactKey(key), Attributes: attrs}
}

// TargetArtifact returns a target-side issue with the given attributes.
func TargetArtifact(key string, attrs ir.Attributes) ir.Artifact {
	r := Route()
	return ir.Artifact{Endpoint: r.Target, Type: ir.ArtifactSEIssue, Key: ir.ArtifactKey(key), Attributes: attrs}
}

// Generic builds a generic artifact from name/value pairs with inferred types.
func Generic(values map[string]ir.Value) ir.GenericArtifact {
	g := ir.NewGenericArtifact()
	for name, v := range values {
		g.Add(name, v, nil, ir.InferType(v))
	}
	return g
}

// Relationship returns an active relationship between two fixture artifacts.
func Relationship(id, sourceKey, targetKey string) ir.ArtifactRelationship {
	return ir.ArtifactRelationship{
		ID:     id,
		Name:   sourceKey + "->" + targetKey,
		Source: ir.ArtifactRef{Endpoint: SourceEndpoint, Type: ir.ArtifactSEIssue, Key: ir.ArtifactKey(sourceKey)},
		Target: ir.ArtifactRef{Endpoint: TargetEndpoint, Type: ir.ArtifactSEIssue, Key: ir.ArtifactKey(targetKey)},
		State:  ir.StateActive,
		Status: ir.StatusCompleted,
	}
}
