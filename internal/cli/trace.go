package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/brix/internal/codec"
	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Route string // optional - filter the run list to one route
	CBOR  bool   // show the stored action payload in CBOR diagnostic notation
}

// TraceRun is one run in the trace output.
type TraceRun struct {
	Seq        int64        `json:"seq"`
	ID         string       `json:"id"`
	Route      string       `json:"route"`
	Source     string       `json:"source_endpoint"`
	SourceKey  string       `json:"source_key,omitempty"`
	HasDeltas  bool         `json:"has_deltas"`
	FiredRules []string     `json:"fired_rules"`
	Actions    []ir.Action  `json:"actions,omitempty"`
	Warnings   []ir.Warning `json:"warnings,omitempty"`
	Digest     string       `json:"digest"`
	Diagnostic string       `json:"cbor,omitempty"`
}

// TraceResult holds the trace output.
type TraceResult struct {
	Runs  []TraceRun `json:"runs"`
	Stats TraceStats `json:"stats"`
}

// TraceStats holds summary statistics for the listed runs.
type TraceStats struct {
	Runs      int `json:"runs"`
	WithDelta int `json:"with_deltas"`
	Fired     int `json:"fired_rules"`
	Actions   int `json:"actions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <db> [run-id]",
		Short: "Show recorded runs",
		Long: `Show the runs recorded by plan and run.

Without a run id, lists every run in write order with its fired rules and
action count. With a run id, shows that run's actions, warnings and plan
digest.

Examples:
  brix trace ./brix.db
  brix trace ./brix.db --route se-sync
  brix trace ./brix.db 0190a1b2-... --cbor
  brix trace ./brix.db 0190a1b2-... --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 2 {
				runID = args[1]
			}
			return runTrace(opts, args[0], runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Route, "route", "", "only runs of this route")
	cmd.Flags().BoolVar(&opts.CBOR, "cbor", false, "show stored actions in CBOR diagnostic notation")

	return cmd
}

func runTrace(opts *TraceOptions, dsn, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := openStore(ctx, dsn)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	var runs []ir.Run
	if runID != "" {
		run, err := st.ReadRun(ctx, runID)
		if errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
		}
		if err != nil {
			return formatter.Fail(ErrCodeStoreFailed, err.Error(), nil)
		}
		runs = []ir.Run{run}
	} else {
		runs, err = st.ListRuns(ctx, opts.Route)
		if err != nil {
			return formatter.Fail(ErrCodeStoreFailed, err.Error(), nil)
		}
	}

	result := TraceResult{Runs: make([]TraceRun, 0, len(runs))}
	for _, run := range runs {
		tr, err := traceRun(run, runID != "", opts.CBOR)
		if err != nil {
			return formatter.Fail(ErrCodeStoreFailed, err.Error(), nil)
		}
		result.Runs = append(result.Runs, tr)

		result.Stats.Runs++
		if run.HasDeltas {
			result.Stats.WithDelta++
		}
		result.Stats.Fired += len(run.FiredRules)
		result.Stats.Actions += len(run.Actions)
	}

	if formatter.IsJSON() {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result})
	}
	if len(result.Runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs found.")
		return nil
	}
	return outputTraceText(formatter.Writer, result, runID != "", opts.Verbose)
}

// traceRun converts a stored run. Detail adds the actions and warnings;
// diag adds the CBOR diagnostic of the re-encoded action list.
func traceRun(run ir.Run, detail, diag bool) (TraceRun, error) {
	tr := TraceRun{
		Seq:        run.Seq,
		ID:         run.ID,
		Route:      run.Route,
		Source:     run.SourceEndpoint,
		SourceKey:  string(run.SourceKey),
		HasDeltas:  run.HasDeltas,
		FiredRules: run.FiredRules,
		Digest:     run.Digest,
	}
	if tr.FiredRules == nil {
		tr.FiredRules = []string{}
	}
	if detail {
		tr.Actions = run.Actions
		tr.Warnings = run.Warnings
	}
	if diag {
		data, err := codec.EncodeActions(run.Actions)
		if err != nil {
			return TraceRun{}, fmt.Errorf("run %s: %w", run.ID, err)
		}
		if tr.Diagnostic, err = codec.Diagnose(data); err != nil {
			return TraceRun{}, fmt.Errorf("run %s: %w", run.ID, err)
		}
	}
	return tr, nil
}

func outputTraceText(w io.Writer, result TraceResult, detail, verbose bool) error {
	fmt.Fprintln(w, "=== Runs ===")
	for _, run := range result.Runs {
		fired := "(none)"
		if len(run.FiredRules) > 0 {
			fired = strings.Join(run.FiredRules, ", ")
		}
		fmt.Fprintf(w, "  [%d] %s %s %s fired: %s\n",
			run.Seq, truncateID(run.ID), run.Route, displayKey(run.SourceKey), fired)
		if verbose || detail {
			fmt.Fprintf(w, "       ID: %s\n", run.ID)
			fmt.Fprintf(w, "       Digest: %s\n", run.Digest)
		}
		for _, a := range run.Actions {
			fmt.Fprintf(w, "       %d. %s %s %s %s\n",
				a.Sequence, a.Command, a.Side, displayKey(string(a.ArtifactKey)), formatAttributes(a.Artifact))
		}
		for _, warn := range run.Warnings {
			fmt.Fprintf(w, "       warning: %s\n", warn)
		}
		if run.Diagnostic != "" {
			fmt.Fprintf(w, "       CBOR: %s\n", run.Diagnostic)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Runs:        %d\n", result.Stats.Runs)
	fmt.Fprintf(w, "  With deltas: %d\n", result.Stats.WithDelta)
	fmt.Fprintf(w, "  Fired rules: %d\n", result.Stats.Fired)
	fmt.Fprintf(w, "  Actions:     %d\n", result.Stats.Actions)
	return nil
}

func displayKey(key string) string {
	if key == "" {
		return "-"
	}
	return key
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
