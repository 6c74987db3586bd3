package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/transform"
)

// RouteFinder selects the routes whose source endpoint matches an artifact.
// ir.RouteSet implements it.
type RouteFinder interface {
	MatchSource(endpoint string) []*ir.BRoute
}

// RelationshipFinder looks up existing relationships by source artifact key.
type RelationshipFinder interface {
	FindRelationships(ctx context.Context, sourceKey ir.ArtifactKey) ([]ir.ArtifactRelationship, error)
}

// Recorder persists the outcome of each run.
type Recorder interface {
	WriteRun(ctx context.Context, run ir.Run) error
}

// Engine drives change events through normalize, delta, rule assertion and
// action generation.
//
// Thread-safety model:
//   - Process(), Plan(): safe from any goroutine; runs share no mutable state
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// The route configuration is never mutated. Every run works on private
// copies of the delta and header set.
type Engine struct {
	routes        RouteFinder
	relationships RelationshipFinder
	recorder      Recorder
	runIDs        RunIDGenerator
	normalizer    *transform.Normalizer
	logger        *slog.Logger
	queue         *eventQueue
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithRelationships sets the relationship lookup. Without one, every run
// behaves as if no relationship exists yet.
func WithRelationships(f RelationshipFinder) EngineOption {
	return func(e *Engine) {
		e.relationships = f
	}
}

// WithRecorder records every plan after it is built.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithRunIDs replaces the UUIDv7 run id generator.
func WithRunIDs(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *transform.Normalizer) EngineOption {
	return func(e *Engine) {
		e.normalizer = n
	}
}

// WithLogger sets the pipeline logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over the given routes.
func New(routes RouteFinder, opts ...EngineOption) *Engine {
	e := &Engine{
		routes: routes,
		runIDs: UUIDv7Generator{},
		logger: slog.Default(),
		queue:  newEventQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.normalizer == nil {
		e.normalizer = transform.NewNormalizer(transform.WithLogger(e.logger))
	}
	return e
}

// Plan is the outcome of one run against one route.
type Plan struct {
	RunID     string             `json:"run_id"`
	Route     string             `json:"route"`
	SourceKey ir.ArtifactKey     `json:"source_key,omitempty"`
	Delta     ir.GenericArtifact `json:"delta"`
	HasDeltas bool               `json:"has_deltas"`
	Fired     []string           `json:"fired_rules"`
	Actions   []ir.Action        `json:"actions"`
	Warnings  []ir.Warning       `json:"warnings,omitempty"`

	// Headers is the run's header set with the output flags written.
	Headers ir.Headers `json:"-"`

	// Extract is set when the run's headers ask for an extract side and a
	// relationship exists.
	Extract *Extract `json:"extract,omitempty"`

	Digest string `json:"digest"`
}

// Run returns the stored form of the plan.
func (p *Plan) Run(sourceEndpoint string) ir.Run {
	return ir.Run{
		ID:             p.RunID,
		Route:          p.Route,
		SourceEndpoint: sourceEndpoint,
		SourceKey:      p.SourceKey,
		HasDeltas:      p.HasDeltas,
		FiredRules:     p.Fired,
		Actions:        p.Actions,
		Warnings:       p.Warnings,
		Digest:         p.Digest,
	}
}

// Process runs ev against every route whose source endpoint matches.
// A source endpoint with no route is a configuration error.
func (e *Engine) Process(ctx context.Context, ev Event) ([]*Plan, error) {
	endpoint := ev.Source.Endpoint.Name
	routes := e.routes.MatchSource(endpoint)
	if len(routes) == 0 {
		return nil, ir.NewConfigError("", "no route for source endpoint %q", endpoint)
	}

	rels, err := e.findRelationships(ctx, ev.Source.Key)
	if err != nil {
		return nil, err
	}

	plans := make([]*Plan, 0, len(routes))
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plan, err := e.Plan(ctx, route, ev, rels)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (e *Engine) findRelationships(ctx context.Context, key ir.ArtifactKey) ([]ir.ArtifactRelationship, error) {
	if e.relationships == nil || key == "" {
		return nil, nil
	}
	rels, err := e.relationships.FindRelationships(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find relationships for %q: %w", key, err)
	}
	e.logger.Debug("relationships found",
		"source_key", key,
		"count", len(rels),
	)
	return rels, nil
}

// Plan runs ev against one route. Nothing is partially committed: on error
// no plan is returned and nothing is recorded.
func (e *Engine) Plan(ctx context.Context, route *ir.BRoute, ev Event, rels []ir.ArtifactRelationship) (*Plan, error) {
	runID := e.runIDs.Generate()
	headers := ev.Headers.Clone()
	headers[ir.HeaderTargetExists] = ir.Bool(ev.Target != nil)
	// A caller's create request wins over the derived one; either way the
	// output flag is a boolean.
	if _, ok := headers[ir.HeaderCreateTarget]; ok {
		headers[ir.HeaderCreateTarget] = ir.Bool(headers.Flag(ir.HeaderCreateTarget))
	} else {
		headers[ir.HeaderCreateTarget] = ir.Bool(ev.Target == nil && len(rels) == 0)
	}

	source, warnings, err := e.normalizer.ToGenericFrom(route, ir.SideSource, ev.Source)
	if err != nil {
		return nil, err
	}
	target := ir.NewGenericArtifact()
	if ev.Target != nil {
		var targetWarnings []ir.Warning
		target, targetWarnings, err = e.normalizer.ToGenericFrom(route, ir.SideTarget, *ev.Target)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, targetWarnings...)
	}

	delta := Compare(source, target)
	headers[ir.HeaderDeltasExist] = ir.Bool(delta.HasDeltas)

	// Assertion claims from one copy; actions are built from another, so a
	// rule keeps the attribute it claimed.
	claims := delta.Working()
	assertion, err := assertRules(e.logger, route.Rules, &claims, source, target, headers)
	if err != nil {
		return nil, ir.WithRoute(err, route.Name)
	}
	headers[ir.HeaderAssertedRulesExist] = ir.Bool(assertion.AnyFired())

	working := delta.Working()
	list, err := generateActions(e.logger, route, assertion.Fired, &working, rels)
	if err != nil {
		return nil, err
	}
	headers[ir.HeaderActionListSize] = ir.Long(list.Size())

	digest, err := ir.PlanDigest(route.Name, list.Actions)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		RunID:     runID,
		Route:     route.Name,
		SourceKey: ev.Source.Key,
		Delta:     delta.Artifact,
		HasDeltas: delta.HasDeltas,
		Fired:     assertion.FiredNames(),
		Actions:   list.Actions,
		Warnings:  append(warnings, list.Warnings...),
		Headers:   headers,
		Digest:    digest,
	}

	if side, ok := extractSide(ev.Headers); ok && len(rels) > 0 {
		ext, err := PrepareExtract(route, side, rels)
		if err != nil {
			return nil, err
		}
		plan.Extract = &ext
	}

	if e.recorder != nil {
		if err := e.recorder.WriteRun(ctx, plan.Run(ev.Source.Endpoint.Name)); err != nil {
			return nil, fmt.Errorf("record run %s: %w", runID, err)
		}
	}

	e.logger.Info("run planned",
		"run_id", runID,
		"route", route.Name,
		"has_deltas", delta.HasDeltas,
		"fired", len(assertion.Fired),
		"actions", list.Size(),
		"warnings", len(plan.Warnings),
	)
	return plan, nil
}

func extractSide(h ir.Headers) (ir.ResourceSide, bool) {
	v := h.Get(ir.HeaderExtractResourceSide)
	if v == nil {
		return "", false
	}
	side, err := ir.ParseResourceSide(ir.FormatValue(v))
	if err != nil {
		return "", false
	}
	return side, true
}

// Enqueue submits an event for the Run loop.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Run processes queued events until ctx is cancelled or Stop is called.
//
// A failing event is logged with its endpoint and key and processing
// continues with the next one. Retrying is the caller's concern.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			if _, err := e.Process(ctx, ev); err != nil {
				e.logger.Error("event processing failed",
					"error", err,
					"endpoint", ev.Source.Endpoint.Name,
					"source_key", ev.Source.Key,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed with the queue.
			if e.queue.Len() == 0 && e.stopped() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run drains the queued events, then returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) stopped() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}
