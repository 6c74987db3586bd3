package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	RunID string // optional - specific run only
	Route string // optional - runs of one route only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID    string `json:"run_id"`
	Route    string `json:"route"`
	Actions  int    `json:"actions"`
	Stored   string `json:"stored_digest"`
	Computed string `json:"computed_digest"`
	Match    bool   `json:"match"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs       []ReplayRunResult `json:"runs"`
	TotalRuns  int               `json:"total_runs"`
	AllMatched bool              `json:"all_matched"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <db>",
		Short: "Re-derive recorded plan digests",
		Long: `Decode every recorded action list and recompute its plan digest.

A run whose stored digest differs from the recomputed one was altered
after it was written, or was written by an incompatible encoder.

Exit codes:
  0 - All digests match
  1 - One or more digests differ
  2 - Command error (database not found, etc.)

Examples:
  brix replay ./brix.db
  brix replay ./brix.db --run 0190a1b2-...
  brix replay ./brix.db --route se-sync --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay one run only")
	cmd.Flags().StringVar(&opts.Route, "route", "", "replay runs of one route only")

	return cmd
}

func runReplay(opts *ReplayOptions, dsn string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := openStore(ctx, dsn)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	var runs []ir.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
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

	result := ReplayResult{
		Runs:       make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:  len(runs),
		AllMatched: true,
	}
	for _, run := range runs {
		rr, err := replayRun(run)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Match {
			result.AllMatched = false
		}
	}

	if formatter.IsJSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replayRun recomputes the digest of a run's decoded actions.
func replayRun(run ir.Run) (ReplayRunResult, error) {
	computed, err := ir.PlanDigest(run.Route, run.Actions)
	if err != nil {
		return ReplayRunResult{}, err
	}
	return ReplayRunResult{
		RunID:    run.ID,
		Route:    run.Route,
		Actions:  len(run.Actions),
		Stored:   run.Digest,
		Computed: computed,
		Match:    computed == run.Digest,
	}, nil
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllMatched {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DIGEST",
			Message: "plan digest verification failed",
		}
	}

	if err := formatter.JSON(response); err != nil {
		return err
	}
	if !result.AllMatched {
		return NewExitError(ExitFailure, "plan digest verification failed")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Match {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s (%s, %d action(s))\n", status, truncateID(run.RunID), run.Route, run.Actions)
		if formatter.Verbose || !run.Match {
			fmt.Fprintf(w, "  stored:   %s\n", run.Stored)
			fmt.Fprintf(w, "  computed: %s\n", run.Computed)
		}
	}
	fmt.Fprintln(w)

	if result.AllMatched {
		fmt.Fprintln(w, "✓ All plan digests verified")
		return nil
	}

	fmt.Fprintln(w, "✗ Plan digest verification failed")
	return NewExitError(ExitFailure, "plan digest verification failed")
}
