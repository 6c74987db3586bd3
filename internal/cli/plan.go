package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/brix/internal/compiler"
	"github.com/roach88/brix/internal/engine"
	"github.com/roach88/brix/internal/harness"
	"github.com/roach88/brix/internal/ir"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Source   string
	Target   string
	Headers  string
	Database string

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// PlanOutput is the printed form of an engine plan. Action credentials
// are cleared; headers are rendered as plain values.
type PlanOutput struct {
	*engine.Plan
	Headers map[string]any `json:"headers"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return newPlanCommand(&PlanOptions{RootOptions: rootOpts})
}

func newPlanCommand(opts *PlanOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <routes>",
		Short: "Plan the actions for one change event",
		Long: `Run one change event through every route matching its source endpoint
and print the resulting plans: fired rules, ordered actions, warnings and
the output headers.

Artifact files are YAML or JSON:

  endpoint: se-source
  type: SEISSUE
  key: SRC-1
  attributes:
    severity: 1
    due: {value: "2024-03-01T10:00:00Z", type: DATE}

With --db, relationships are read from the database and the run is
recorded there. --db takes a SQLite file path or a postgres:// URL.

Examples:
  brix plan ./routes --source issue.yaml
  brix plan ./routes --source issue.yaml --target counterpart.yaml
  brix plan ./routes --source issue.yaml --headers headers.yaml --db brix.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "source artifact file (required)")
	_ = cmd.MarkFlagRequired("source")
	cmd.Flags().StringVar(&opts.Target, "target", "", "already-fetched target artifact file")
	cmd.Flags().StringVar(&opts.Headers, "headers", "", "header file (flat map of names to values)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "relationship and run database")

	return cmd
}

func runPlan(opts *PlanOptions, routesPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	routes, err := loadValidRoutes(formatter, routesPath)
	if err != nil {
		return err
	}

	step, err := readEventStep(opts)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}
	ev, err := harness.BuildEvent(routes, step)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}

	engineOpts := []engine.EngineOption{engine.WithLogger(engineLogger(formatter))}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDs(opts.RunIDs))
	}

	if opts.Database != "" {
		st, err := openStore(ctx, opts.Database)
		if err != nil {
			return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to open database: %v", err), nil)
		}
		defer st.Close()
		engineOpts = append(engineOpts, engine.WithRelationships(st), engine.WithRecorder(st))
	}

	plans, err := engine.New(routes, engineOpts...).Process(ctx, ev)
	if err != nil {
		return outputSyncError(formatter, err)
	}

	outputs := make([]PlanOutput, len(plans))
	for i, p := range plans {
		outputs[i] = planOutput(p)
	}

	if formatter.IsJSON() {
		return formatter.JSON(CLIResponse{Status: "ok", Data: outputs})
	}
	for _, p := range outputs {
		writePlanText(formatter.Writer, p)
	}
	return nil
}

func readEventStep(opts *PlanOptions) (harness.EventStep, error) {
	source, err := readArtifact(opts.Source)
	if err != nil {
		return harness.EventStep{}, err
	}
	step := harness.EventStep{Source: source}

	if opts.Target != "" {
		target, err := readArtifact(opts.Target)
		if err != nil {
			return harness.EventStep{}, err
		}
		step.Target = &target
	}

	if opts.Headers != "" {
		headers, err := readHeaders(opts.Headers)
		if err != nil {
			return harness.EventStep{}, err
		}
		step.Headers = headers
	}
	return step, nil
}

// loadValidRoutes loads and validates a route set, reporting failures
// through the formatter.
func loadValidRoutes(formatter *OutputFormatter, path string) (ir.RouteSet, error) {
	loaded, err := LoadRoutes(path)
	if err != nil {
		return nil, formatter.Fail(loadErrorCode(err), loadErrorMessage(err), nil)
	}
	formatter.VerboseLog("Loaded %s", routeFileLabel(path, loaded.FileCount))

	if errs := compiler.Validate(loaded.Routes); len(errs) > 0 {
		return nil, outputValidationErrors(formatter, errs)
	}
	return loaded.Routes, nil
}

// outputSyncError reports a failed run. Sync errors are a failure of the
// run (exit 1), anything else is a command error.
func outputSyncError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var details any
	var se *ir.SyncError
	if errors.As(err, &se) {
		code = "SYNC_" + string(se.Kind)
		details = map[string]string{"route": se.Route, "attribute": se.Attribute}
	}
	_ = formatter.Error(code, err.Error(), details)
	if se != nil {
		return WrapExitError(ExitFailure, "sync run failed", err)
	}
	return WrapExitError(ExitCommandError, "sync run failed", err)
}

func planOutput(p *engine.Plan) PlanOutput {
	cp := *p
	cp.Actions = make([]ir.Action, len(p.Actions))
	for i, a := range p.Actions {
		a = a.Clone()
		a.Credential = ir.Credential{}
		cp.Actions[i] = a
	}
	if cp.Fired == nil {
		cp.Fired = []string{}
	}

	headers := make(map[string]any, len(p.Headers))
	for name, v := range p.Headers {
		headers[name] = ir.ToAny(v)
	}
	return PlanOutput{Plan: &cp, Headers: headers}
}

func writePlanText(w io.Writer, p PlanOutput) {
	fmt.Fprintf(w, "Route %s (run %s)\n", p.Route, p.RunID)
	if p.SourceKey != "" {
		fmt.Fprintf(w, "  Source: %s\n", p.SourceKey)
	}

	if !p.HasDeltas {
		fmt.Fprintln(w, "  No deltas")
	}
	if len(p.Fired) == 0 {
		fmt.Fprintln(w, "  Fired: (none)")
	} else {
		fmt.Fprintf(w, "  Fired: %s\n", strings.Join(p.Fired, ", "))
	}

	fmt.Fprintln(w, "  Actions:")
	if len(p.Actions) == 0 {
		fmt.Fprintln(w, "    (none)")
	}
	for _, a := range p.Actions {
		fmt.Fprintf(w, "    %d. %s %s %s %s (rule %s)\n",
			a.Sequence, a.Command, a.Side, displayKey(string(a.ArtifactKey)), formatAttributes(a.Artifact), a.Rule)
	}

	if len(p.Warnings) > 0 {
		fmt.Fprintln(w, "  Warnings:")
		for _, warn := range p.Warnings {
			fmt.Fprintf(w, "    %s\n", warn)
		}
	}

	if p.Extract != nil {
		fmt.Fprintf(w, "  Extract: %s %s %s (%s)\n",
			p.Extract.Side, p.Extract.Endpoint, p.Extract.Key, p.Extract.FetchURI)
	}

	fmt.Fprintln(w, "  Headers:")
	for _, name := range slices.Sorted(maps.Keys(p.Headers)) {
		fmt.Fprintf(w, "    %s=%v\n", name, p.Headers[name])
	}
	fmt.Fprintln(w)
}

// formatAttributes renders a payload as {name=value, ...} in name order.
func formatAttributes(g ir.GenericArtifact) string {
	names := g.Attributes.Names()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + ir.FormatValue(g.Attributes.Value(name))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// engineLogger logs pipeline records to stderr in verbose mode and
// discards them otherwise.
func engineLogger(formatter *OutputFormatter) *slog.Logger {
	if !formatter.Verbose {
		return newLogger(io.Discard, false)
	}
	return newLogger(formatter.GetErrWriter(), true)
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
