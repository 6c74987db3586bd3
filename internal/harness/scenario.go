package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario loads a route set, seeds relationships, feeds change events
// through the engine and asserts on the plans the engine produced.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Routes is the route directory, .cue file or .json/.jsonc file.
	// Relative paths are resolved against the scenario file's directory.
	Routes string `yaml:"routes"`

	// Relationships are saved to the store before the first event.
	Relationships []RelationshipStep `yaml:"relationships,omitempty"`

	// Events are processed in order, one engine pass each.
	Events []EventStep `yaml:"events"`

	// Assertions validate the produced plans and the recorded runs.
	Assertions []Assertion `yaml:"assertions"`

	// RunIDPrefix prefixes the sequential run ids ("run-1", "run-2", ...).
	// Defaults to "run".
	RunIDPrefix string `yaml:"run_id_prefix,omitempty"`
}

// ArtifactRefStep names one side of a relationship.
type ArtifactRefStep struct {
	Endpoint string `yaml:"endpoint"`
	Type     string `yaml:"type"`
	Key      string `yaml:"key"`
}

// RelationshipStep seeds one artifact relationship.
type RelationshipStep struct {
	ID     string          `yaml:"id"`
	Source ArtifactRefStep `yaml:"source"`
	Target ArtifactRefStep `yaml:"target"`

	// Status defaults to COMPLETED.
	Status string `yaml:"status,omitempty"`
}

// ArtifactStep is a system-specific artifact as it arrives from an endpoint.
type ArtifactStep struct {
	// Endpoint is the endpoint name. Routes are matched on it, and the full
	// endpoint definition is taken from the route set when one declares it.
	Endpoint string `yaml:"endpoint"`

	// Type is the artifact type, e.g. SEISSUE.
	Type string `yaml:"type"`

	Key string `yaml:"key,omitempty"`

	// Attributes accepts bare values or {value, type, traits} maps.
	Attributes map[string]any `yaml:"attributes"`
}

// EventStep is one change event.
type EventStep struct {
	Source ArtifactStep `yaml:"source"`

	// Target is the already-fetched counterpart, if any.
	Target *ArtifactStep `yaml:"target,omitempty"`

	Headers map[string]any `yaml:"headers,omitempty"`

	// Expect checks the outcome of this event right after it is processed.
	// If nil the event is assumed to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of one event.
type ExpectClause struct {
	// Error is a substring of the expected processing error.
	Error string `yaml:"error,omitempty"`

	// Fired is the exact list of fired rules across the event's plans.
	Fired []string `yaml:"fired,omitempty"`

	// Actions is the expected total action count.
	Actions *int `yaml:"actions,omitempty"`
}

// Assertion validates the plans of a scenario or the recorded runs.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fired": rule fired
	// - "not_fired": rule did not fire
	// - "action": an action matches command, side, key, rule and attributes
	// - "action_count": total number of actions
	// - "warning": a warning with code (and attribute) was raised
	// - "header": a run header holds value
	// - "recorded_runs": the store holds count runs (for route, if set)
	Type string `yaml:"type"`

	// Event restricts the assertion to one event (0-based). Unset means
	// any event.
	Event *int `yaml:"event,omitempty"`

	Rule    string `yaml:"rule,omitempty"`
	Command string `yaml:"command,omitempty"`
	Side    string `yaml:"side,omitempty"`
	Key     string `yaml:"key,omitempty"`

	// Attributes is a subset match on the action payload.
	Attributes map[string]any `yaml:"attributes,omitempty"`

	Code      string `yaml:"code,omitempty"`
	Attribute string `yaml:"attribute,omitempty"`

	Header string `yaml:"header,omitempty"`
	Value  any    `yaml:"value,omitempty"`

	Count int    `yaml:"count,omitempty"`
	Route string `yaml:"route,omitempty"`
}

// Assertion type constants.
const (
	AssertFired        = "fired"
	AssertNotFired     = "not_fired"
	AssertAction       = "action"
	AssertActionCount  = "action_count"
	AssertWarning      = "warning"
	AssertHeader       = "header"
	AssertRecordedRuns = "recorded_runs"
)

// LoadScenario reads and parses a scenario YAML file. The routes path is
// resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the routes path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve before validation so the existence check sees the real path.
	if scenario.Routes != "" && !filepath.IsAbs(scenario.Routes) && basePath != "" {
		scenario.Routes = filepath.Join(basePath, scenario.Routes)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Routes == "" {
		return fmt.Errorf("routes is required")
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := os.Stat(s.Routes); os.IsNotExist(err) {
		return fmt.Errorf("routes not found: %s", s.Routes)
	}

	for i, rel := range s.Relationships {
		if rel.ID == "" {
			return fmt.Errorf("relationships[%d]: id is required", i)
		}
		if rel.Source.Key == "" || rel.Target.Key == "" {
			return fmt.Errorf("relationships[%d]: source and target keys are required", i)
		}
	}

	for i, ev := range s.Events {
		if err := validateArtifact(fmt.Sprintf("events[%d].source", i), ev.Source); err != nil {
			return err
		}
		if ev.Target != nil {
			if err := validateArtifact(fmt.Sprintf("events[%d].target", i), *ev.Target); err != nil {
				return err
			}
		}
		if ev.Expect != nil && ev.Expect.Error == "" && ev.Expect.Fired == nil && ev.Expect.Actions == nil {
			return fmt.Errorf("events[%d].expect: one of error, fired or actions is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateArtifact(field string, a ArtifactStep) error {
	if a.Endpoint == "" {
		return fmt.Errorf("%s: endpoint is required", field)
	}
	if a.Type == "" {
		return fmt.Errorf("%s: type is required", field)
	}
	if a.Attributes == nil {
		return fmt.Errorf("%s: attributes is required (use empty map if no attributes)", field)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Event != nil && *a.Event < 0 {
		return fmt.Errorf("assertions[%d]: event must be non-negative", index)
	}

	switch a.Type {
	case AssertFired, AssertNotFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for %s", index, a.Type)
		}
	case AssertAction:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for action", index)
		}
	case AssertActionCount, AssertRecordedRuns:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertWarning:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for warning", index)
		}
	case AssertHeader:
		if a.Header == "" {
			return fmt.Errorf("assertions[%d]: header is required for header", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
