package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/testutil"
	"github.com/roach88/brix/internal/transform"
)

type memRelationships struct {
	rels []ir.ArtifactRelationship
	err  error
}

func (m *memRelationships) FindRelationships(_ context.Context, key ir.ArtifactKey) ([]ir.ArtifactRelationship, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []ir.ArtifactRelationship
	for _, r := range m.rels {
		if r.Source.Key == key {
			out = append(out, r)
		}
	}
	return out, nil
}

type memRecorder struct {
	mu   sync.Mutex
	runs []ir.Run
}

func (m *memRecorder) WriteRun(_ context.Context, run ir.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRecorder) Runs() []ir.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ir.Run(nil), m.runs...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func severityEvent(key string) Event {
	return Event{Source: testutil.SourceArtifact(key, ir.Attributes{
		"severity":         ir.NewAttribute(ir.Long(1), ir.AttrLong, nil),
		"description_text": ir.NewAttribute(ir.String("issue (EWM-999)"), ir.AttrString, nil),
	})}
}

func newTestEngine(opts ...EngineOption) *Engine {
	routes := ir.RouteSet{*testutil.Route()}
	base := []EngineOption{WithLogger(quietLogger()), WithRunIDs(testutil.NewFixedRunIDGenerator("run-1"))}
	return New(routes, append(base, opts...)...)
}

func TestEngine_ProcessEndToEnd(t *testing.T) {
	rec := &memRecorder{}
	rels := &memRelationships{rels: []ir.ArtifactRelationship{testutil.Relationship("rel-1", "SRC-1", "TGT-1")}}
	e := newTestEngine(WithRecorder(rec), WithRelationships(rels))

	plans, err := e.Process(context.Background(), severityEvent("SRC-1"))

	require.NoError(t, err)
	require.Len(t, plans, 1)
	p := plans[0]
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, "se-sync", p.Route)
	assert.True(t, p.HasDeltas)
	assert.Equal(t, []string{"severity-sync"}, p.Fired)

	require.Len(t, p.Actions, 1)
	a := p.Actions[0]
	assert.Equal(t, ir.CmdModifyAttribute, a.Command)
	assert.Equal(t, ir.ArtifactKey("TGT-1"), a.ArtifactKey)
	assert.Equal(t, []string{"severity"}, a.Artifact.Attributes.Names())

	assert.Equal(t, ir.Bool(false), p.Headers.Get(ir.HeaderTargetExists))
	assert.Equal(t, ir.Bool(false), p.Headers.Get(ir.HeaderCreateTarget))
	assert.Equal(t, ir.Bool(true), p.Headers.Get(ir.HeaderDeltasExist))
	assert.Equal(t, ir.Bool(true), p.Headers.Get(ir.HeaderAssertedRulesExist))
	assert.Equal(t, ir.Long(1), p.Headers.Get(ir.HeaderActionListSize))

	digest, err := ir.PlanDigest("se-sync", p.Actions)
	require.NoError(t, err)
	assert.Equal(t, digest, p.Digest)

	runs := rec.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, testutil.SourceEndpoint, runs[0].SourceEndpoint)
	assert.Equal(t, ir.ArtifactKey("SRC-1"), runs[0].SourceKey)
	assert.Equal(t, p.Digest, runs[0].Digest)
}

func TestEngine_ProcessWithoutRelationshipRequestsCreate(t *testing.T) {
	e := newTestEngine()

	plans, err := e.Process(context.Background(), severityEvent("SRC-1"))

	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, ir.Bool(true), plans[0].Headers.Get(ir.HeaderCreateTarget))
	assert.False(t, plans[0].Actions[0].HasKey())
}

func TestEngine_ProcessRulesSeeRunFlags(t *testing.T) {
	route := testutil.Route()
	route.Rules = append(route.Rules, ir.Rule{
		Sequence: 0,
		Name:     "create-missing",
		Conditions: []ir.RuleCondition{
			{Sequence: 1, PredicateType: ir.PredicateExchangeHeader, Subject: ir.HeaderCreateTarget, Operator: ir.OpTrue},
		},
		Actions: []ir.RuleActionConfig{
			{Sequence: 1, Command: ir.CmdCreateArtifact, Side: ir.SideTarget},
		},
	})
	e := New(ir.RouteSet{*route}, WithLogger(quietLogger()), WithRunIDs(testutil.NewFixedRunIDGenerator("run-1")))

	plans, err := e.Process(context.Background(), severityEvent("SRC-1"))

	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"create-missing", "severity-sync"}, plans[0].Fired)
	// The modify folds into the create.
	require.Len(t, plans[0].Actions, 1)
	assert.Equal(t, ir.CmdCreateArtifact, plans[0].Actions[0].Command)
	assert.Equal(t, []string{"severity"}, plans[0].Actions[0].Artifact.Attributes.Names())
}

func TestEngine_ProcessCallerCreateHeader(t *testing.T) {
	rels := &memRelationships{rels: []ir.ArtifactRelationship{testutil.Relationship("rel-1", "SRC-1", "TGT-1")}}
	e := newTestEngine(WithRelationships(rels))

	ev := severityEvent("SRC-1")
	ev.Headers = ir.Headers{ir.HeaderCreateTarget: ir.String("TRUE")}
	plans, err := e.Process(context.Background(), ev)

	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, ir.Bool(true), plans[0].Headers.Get(ir.HeaderCreateTarget))
	assert.Equal(t, ir.String("TRUE"), ev.Headers.Get(ir.HeaderCreateTarget))
}

func TestEngine_WithNormalizer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := newTestEngine(WithNormalizer(transform.NewNormalizer(transform.WithLogger(logger))))

	_, err := e.Process(context.Background(), severityEvent("SRC-1"))

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "mapped attribute")
	assert.Contains(t, buf.String(), "direction=normalize")
}

func claimingRoute() *ir.BRoute {
	route := testutil.Route()
	route.Rules = []ir.Rule{
		{
			Sequence: 1,
			Name:     "severity-claim",
			Conditions: []ir.RuleCondition{
				{Sequence: 1, PredicateType: ir.PredicateAttribute, Side: ir.SideSource, Subject: "severity", Operator: ir.OpExists},
			},
			Actions: []ir.RuleActionConfig{
				{Sequence: 1, Command: ir.CmdModifyAttribute, Side: ir.SideTarget, Config: ir.ActionCommandConfig{ParamName: "severity"}},
			},
		},
		{
			Sequence: 2,
			Name:     "severity-comment",
			Conditions: []ir.RuleCondition{
				{Sequence: 1, PredicateType: ir.PredicateAttribute, Side: ir.SideSource, Subject: "severity", Operator: ir.OpExists},
				{Sequence: 2, PredicateType: ir.PredicateAttribute, Side: ir.SideSource, Subject: "description_text", Operator: ir.OpNotEmpty},
			},
			Actions: []ir.RuleActionConfig{
				{Sequence: 1, Command: ir.CmdModifyAttribute, Side: ir.SideTarget, Config: ir.ActionCommandConfig{ParamName: "severity"}},
				{Sequence: 2, Command: ir.CmdAddComment, Side: ir.SideTarget, Config: ir.ActionCommandConfig{ParamName: "description_text"}},
			},
		},
	}
	return route
}

func TestEngine_ProcessClaimingRuleKeepsItsAttribute(t *testing.T) {
	route := claimingRoute()
	route.Rules = route.Rules[:1]
	e := New(ir.RouteSet{*route}, WithLogger(quietLogger()), WithRunIDs(testutil.NewFixedRunIDGenerator("run-1")))

	plans, err := e.Process(context.Background(), severityEvent("SRC-1"))

	require.NoError(t, err)
	p := plans[0]
	assert.Equal(t, []string{"severity-claim"}, p.Fired)
	assert.Empty(t, p.Warnings)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, ir.CmdModifyAttribute, p.Actions[0].Command)
	assert.Equal(t, ir.Long(1), p.Actions[0].Artifact.Attributes.Value("severity"))
}

func TestEngine_ProcessClaimedAttributeLandsInOneAction(t *testing.T) {
	e := New(ir.RouteSet{*claimingRoute()}, WithLogger(quietLogger()), WithRunIDs(testutil.NewFixedRunIDGenerator("run-1")))

	plans, err := e.Process(context.Background(), severityEvent("SRC-1"))

	require.NoError(t, err)
	p := plans[0]
	assert.Equal(t, []string{"severity-claim", "severity-comment"}, p.Fired)

	require.Len(t, p.Actions, 2)
	assert.Equal(t, ir.CmdModifyAttribute, p.Actions[0].Command)
	assert.Equal(t, []string{"severity"}, p.Actions[0].Artifact.Attributes.Names())
	assert.Equal(t, ir.CmdAddComment, p.Actions[1].Command)
	assert.Equal(t, []string{"description_text"}, p.Actions[1].Artifact.Attributes.Names())

	require.Len(t, p.Warnings, 1)
	assert.Equal(t, ir.WarnMissingAttribute, p.Warnings[0].Code)
	assert.Equal(t, "severity", p.Warnings[0].Attribute)
}

func TestEngine_WithLoggerCoversEveryStage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := newTestEngine(WithLogger(logger))

	_, err := e.Process(context.Background(), severityEvent("SRC-1"))

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "rule fired")
	assert.Contains(t, out, "action appended")
	assert.Contains(t, out, "actions generated")
	assert.Contains(t, out, "run planned")
}

func TestEngine_ProcessUnchangedTargetYieldsNoAction(t *testing.T) {
	e := newTestEngine()
	ev := severityEvent("SRC-1")
	target := testutil.TargetArtifact("TGT-1", ir.Attributes{
		"sev":  ir.NewAttribute(ir.Long(1), ir.AttrLong, nil),
		"body": ir.NewAttribute(ir.String("issue (EWM-999)"), ir.AttrString, nil),
	})
	ev.Target = &target

	plans, err := e.Process(context.Background(), ev)

	require.NoError(t, err)
	p := plans[0]
	assert.NotContains(t, p.Delta.Attributes.Names(), "severity")
	assert.Equal(t, []string{"severity-sync"}, p.Fired, "rules read the source, not the delta")
	assert.Empty(t, p.Actions)
	require.Len(t, p.Warnings, 1)
	assert.Equal(t, ir.WarnMissingAttribute, p.Warnings[0].Code)
	assert.Equal(t, ir.Bool(true), p.Headers.Get(ir.HeaderTargetExists))
	assert.Equal(t, ir.Long(0), p.Headers.Get(ir.HeaderActionListSize))
}

func TestEngine_ProcessNoRoute(t *testing.T) {
	e := newTestEngine()
	ev := severityEvent("SRC-1")
	ev.Source.Endpoint.Name = "unknown"

	_, err := e.Process(context.Background(), ev)

	assert.True(t, ir.IsConfigError(err), "got %v", err)
}

func TestEngine_ProcessFailureRecordsNothing(t *testing.T) {
	rec := &memRecorder{}
	e := newTestEngine(WithRecorder(rec))
	ev := severityEvent("SRC-1")
	ev.Source.Attributes["created"] = ir.NewAttribute(ir.String("yesterday"), ir.AttrString, nil)

	plans, err := e.Process(context.Background(), ev)

	require.Error(t, err)
	assert.True(t, ir.IsDataError(err))
	assert.Nil(t, plans)
	assert.Empty(t, rec.Runs())
}

func TestEngine_ProcessRelationshipLookupError(t *testing.T) {
	boom := errors.New("db down")
	e := newTestEngine(WithRelationships(&memRelationships{err: boom}))

	_, err := e.Process(context.Background(), severityEvent("SRC-1"))

	assert.ErrorIs(t, err, boom)
}

func TestEngine_ProcessDoesNotMutateInputs(t *testing.T) {
	routes := ir.RouteSet{*testutil.Route()}
	e := New(routes, WithLogger(quietLogger()), WithRunIDs(testutil.NewFixedRunIDGenerator("")))
	ev := severityEvent("SRC-1")
	ev.Headers = ir.Headers{"custom": ir.String("x")}

	_, err := e.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.Equal(t, ir.Headers{"custom": ir.String("x")}, ev.Headers)
	assert.Equal(t, *testutil.Route(), routes[0])
	assert.Len(t, ev.Source.Attributes, 2)
}

func TestEngine_ProcessExtractHeader(t *testing.T) {
	rels := &memRelationships{rels: []ir.ArtifactRelationship{testutil.Relationship("rel-1", "SRC-1", "TGT-1")}}
	e := newTestEngine(WithRelationships(rels))
	ev := severityEvent("SRC-1")
	ev.Headers = ir.Headers{ir.HeaderExtractResourceSide: ir.String("TARGET")}

	plans, err := e.Process(context.Background(), ev)

	require.NoError(t, err)
	require.NotNil(t, plans[0].Extract)
	assert.Equal(t, ir.ArtifactKey("TGT-1"), plans[0].Extract.Key)
	assert.Equal(t, testutil.TargetEndpoint, plans[0].Extract.Endpoint)
}

func TestEngine_ProcessConcurrentRunsAgree(t *testing.T) {
	e := newTestEngine()
	const runs = 16

	digests := make([]string, runs)
	var wg sync.WaitGroup
	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plans, err := e.Process(context.Background(), severityEvent("SRC-1"))
			if assert.NoError(t, err) {
				digests[i] = plans[0].Digest
			}
		}()
	}
	wg.Wait()

	for _, d := range digests {
		assert.Equal(t, digests[0], d)
	}
}

func TestEngine_ProcessCancelledContext(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Process(ctx, severityEvent("SRC-1"))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_RunDrainsQueueAndContinuesAfterFailure(t *testing.T) {
	rec := &memRecorder{}
	e := New(ir.RouteSet{*testutil.Route()},
		WithLogger(quietLogger()),
		WithRecorder(rec),
		WithRunIDs(NewFixedGenerator("run-1", "run-2")),
	)

	bad := severityEvent("SRC-0")
	bad.Source.Endpoint.Name = "unknown"
	require.True(t, e.Enqueue(severityEvent("SRC-1")))
	require.True(t, e.Enqueue(bad))
	require.True(t, e.Enqueue(severityEvent("SRC-2")))
	e.Stop()

	require.NoError(t, e.Run(context.Background()))

	runs := rec.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, ir.ArtifactKey("SRC-1"), runs[0].SourceKey)
	assert.Equal(t, ir.ArtifactKey("SRC-2"), runs[1].SourceKey)
	assert.False(t, e.Enqueue(severityEvent("SRC-3")))
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
