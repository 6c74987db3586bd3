package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/brix/internal/compiler"
	"github.com/roach88/brix/internal/engine"
	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/store"
	"github.com/roach88/brix/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against the real engine with sequential run ids and an
// in-memory store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	routes ir.RouteSet
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load and validate the route set
// 2. Create fresh in-memory database and save the relationships
// 3. Process each event, checking its expect clause
// 4. Read back the recorded runs and evaluate assertions
//
// A returned error means the scenario could not be executed; failed
// expectations are reported in the result instead.
func Run(scenario *Scenario) (*Result, error) {
	routes, err := compiler.LoadRoutes(scenario.Routes)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	if errs := compiler.Validate(routes); len(errs) > 0 {
		return nil, fmt.Errorf("invalid routes: %w", errs[0])
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(routes,
		engine.WithRelationships(st),
		engine.WithRecorder(st),
		engine.WithRunIDs(testutil.NewSequentialRunIDGenerator(scenario.RunIDPrefix)),
		engine.WithLogger(logger),
	)

	h := &Harness{
		store:  st,
		engine: eng,
		routes: routes,
		logger: logger,
	}

	ctx := context.Background()

	if err := h.seedRelationships(ctx, scenario.Relationships); err != nil {
		return nil, fmt.Errorf("failed to seed relationships: %w", err)
	}

	result := NewResult()
	if err := h.processEvents(ctx, scenario.Events, result); err != nil {
		return nil, fmt.Errorf("failed to process events: %w", err)
	}

	runs, err := st.ListRuns(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	result.Runs = runs

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) seedRelationships(ctx context.Context, steps []RelationshipStep) error {
	for i, step := range steps {
		status := ir.StatusCompleted
		if step.Status != "" {
			parsed, err := ir.ParseStatus(step.Status)
			if err != nil {
				return fmt.Errorf("relationship %d: %w", i, err)
			}
			status = parsed
		}

		rel := ir.ArtifactRelationship{
			ID:     step.ID,
			Name:   step.Source.Key + "->" + step.Target.Key,
			Source: refFromStep(step.Source),
			Target: refFromStep(step.Target),
			State:  ir.StateActive,
			Status: status,
		}
		if err := h.store.SaveRelationship(ctx, rel); err != nil {
			return fmt.Errorf("relationship %d: %w", i, err)
		}
	}
	return nil
}

func refFromStep(s ArtifactRefStep) ir.ArtifactRef {
	return ir.ArtifactRef{
		Endpoint: s.Endpoint,
		Type:     ir.ArtifactType(s.Type),
		Key:      ir.ArtifactKey(s.Key),
	}
}

// processEvents runs every event through the engine. Processing errors are
// part of the outcome; only malformed event data aborts the scenario.
func (h *Harness) processEvents(ctx context.Context, events []EventStep, result *Result) error {
	for i, step := range events {
		ev, err := BuildEvent(h.routes, step)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}

		plans, err := h.engine.Process(ctx, ev)
		outcome := Outcome{Event: i, Plans: plans, Err: err}
		result.AddOutcome(outcome)

		if step.Expect != nil {
			for _, msg := range checkExpect(i, step.Expect, outcome) {
				result.AddError(msg)
			}
		} else if err != nil {
			result.AddError(fmt.Sprintf("event %d: unexpected error: %v", i, err))
		}

		h.logger.Info("event processed",
			"event", i,
			"endpoint", ev.Source.Endpoint.Name,
			"source_key", ev.Source.Key,
			"plans", len(plans),
			"error", err,
		)
	}
	return nil
}

// checkExpect compares one outcome with its expect clause.
func checkExpect(i int, expect *ExpectClause, o Outcome) []string {
	var errs []string

	switch {
	case expect.Error != "" && o.Err == nil:
		errs = append(errs, fmt.Sprintf("event %d: expected error containing %q, got success", i, expect.Error))
	case expect.Error != "" && !strings.Contains(o.Err.Error(), expect.Error):
		errs = append(errs, fmt.Sprintf("event %d: expected error containing %q, got %q", i, expect.Error, o.Err.Error()))
	case expect.Error == "" && o.Err != nil:
		errs = append(errs, fmt.Sprintf("event %d: unexpected error: %v", i, o.Err))
	}

	if expect.Fired != nil && !slices.Equal(expect.Fired, o.Fired()) {
		errs = append(errs, fmt.Sprintf("event %d: expected fired rules %v, got %v", i, expect.Fired, o.Fired()))
	}
	if expect.Actions != nil && *expect.Actions != len(o.Actions()) {
		errs = append(errs, fmt.Sprintf("event %d: expected %d actions, got %d", i, *expect.Actions, len(o.Actions())))
	}
	return errs
}

// BuildEvent converts an event step into an engine event. Artifact
// endpoints are resolved against the route set so that actions and
// extract requests carry the configured URIs.
func BuildEvent(routes ir.RouteSet, step EventStep) (engine.Event, error) {
	source, err := buildArtifact(routes, step.Source)
	if err != nil {
		return engine.Event{}, fmt.Errorf("source: %w", err)
	}
	ev := engine.Event{Source: source}

	if step.Target != nil {
		target, err := buildArtifact(routes, *step.Target)
		if err != nil {
			return engine.Event{}, fmt.Errorf("target: %w", err)
		}
		ev.Target = &target
	}

	if len(step.Headers) > 0 {
		ev.Headers = make(ir.Headers, len(step.Headers))
		for name, raw := range step.Headers {
			v, err := ir.FromAny(raw)
			if err != nil {
				return engine.Event{}, fmt.Errorf("header %q: %w", name, err)
			}
			ev.Headers[name] = v
		}
	}
	return ev, nil
}

func buildArtifact(routes ir.RouteSet, step ArtifactStep) (ir.Artifact, error) {
	attrs, err := ir.AttributesFromMap(step.Attributes)
	if err != nil {
		return ir.Artifact{}, err
	}
	return ir.Artifact{
		Endpoint:   endpointNamed(routes, step.Endpoint),
		Type:       ir.ArtifactType(step.Type),
		Key:        ir.ArtifactKey(step.Key),
		Attributes: attrs,
	}, nil
}

// endpointNamed returns the route-declared endpoint called name, or a bare
// endpoint carrying only the name.
func endpointNamed(routes ir.RouteSet, name string) ir.Endpoint {
	for _, r := range routes {
		if r.Source.Name == name {
			return r.Source
		}
		if r.Target.Name == name {
			return r.Target
		}
	}
	return ir.Endpoint{Name: name}
}
