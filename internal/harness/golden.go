package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/brix/internal/engine"
	"github.com/roach88/brix/internal/ir"
)

// Snapshot renders the plans of a scenario run as canonical JSON.
//
// The snapshot holds everything an adapter would act on: fired rules,
// headers, actions with their payloads, warnings and extract requests.
// Credentials and plan digests are left out; the digest is covered by the
// engine's own tests and would churn on any payload change.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	events := make([]any, len(result.Outcomes))
	for i, o := range result.Outcomes {
		entry := map[string]any{"event": int64(o.Event)}
		if o.Err != nil {
			entry["error"] = o.Err.Error()
		} else {
			plans := make([]any, len(o.Plans))
			for j, p := range o.Plans {
				plans[j] = planMap(p)
			}
			entry["plans"] = plans
		}
		events[i] = entry
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"events":   events,
	})
}

// planMap converts a plan to a map[string]any for canonical JSON
// serialization. ir.MarshalCanonical only handles IR values and primitives.
func planMap(p *engine.Plan) map[string]any {
	headers := make(map[string]any, len(p.Headers))
	for name, v := range p.Headers {
		headers[name] = ir.ToAny(v)
	}

	actions := make([]any, len(p.Actions))
	for i, a := range p.Actions {
		actions[i] = actionMap(a)
	}

	warnings := make([]any, len(p.Warnings))
	for i, w := range p.Warnings {
		wm := map[string]any{
			"code":      string(w.Code),
			"attribute": w.Attribute,
			"message":   w.Message,
		}
		if w.Value != "" {
			wm["value"] = w.Value
		}
		warnings[i] = wm
	}

	fired := p.Fired
	if fired == nil {
		fired = []string{}
	}

	m := map[string]any{
		"run_id":      p.RunID,
		"route":       p.Route,
		"source_key":  string(p.SourceKey),
		"has_deltas":  p.HasDeltas,
		"fired_rules": fired,
		"headers":     headers,
		"actions":     actions,
		"warnings":    warnings,
	}
	if p.Extract != nil {
		m["extract"] = map[string]any{
			"side":        string(p.Extract.Side),
			"endpoint":    p.Extract.Endpoint,
			"system_type": string(p.Extract.SystemType),
			"fetch_uri":   p.Extract.FetchURI,
			"key":         string(p.Extract.Key),
		}
	}
	return m
}

func actionMap(a ir.Action) map[string]any {
	attrs := make(map[string]any, a.Artifact.Len())
	for name, props := range a.Artifact.Attributes {
		entry := map[string]any{
			"type":  string(props.Type.OrUnknown()),
			"value": ir.ToAny(props.Value),
		}
		if len(props.Traits) > 0 {
			traits := make(map[string]any, len(props.Traits))
			for k, v := range props.Traits {
				traits[k] = v
			}
			entry["traits"] = traits
		}
		attrs[name] = entry
	}

	m := map[string]any{
		"command":       string(a.Command),
		"side":          string(a.Side),
		"rule":          a.Rule,
		"endpoint_uri":  a.EndpointURI,
		"system_type":   string(a.SystemType),
		"artifact_type": string(a.ArtifactType),
		"sequence":      a.Sequence,
		"attributes":    attrs,
	}
	if a.Name != "" {
		m["name"] = a.Name
	}
	if a.ArtifactKey != "" {
		m["artifact_key"] = string(a.ArtifactKey)
	}
	return m
}

// RunWithGolden executes a scenario and compares its plan snapshot against
// a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's snapshot against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)

	return nil
}
