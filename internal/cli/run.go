package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/brix/internal/engine"
	"github.com/roach88/brix/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunSummary reports what a batch recorded.
type RunSummary struct {
	Events   int `json:"events"`
	Recorded int `json:"recorded_runs"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <routes> <events-file>",
		Short: "Process a stream of change events",
		Long: `Queue every event of a YAML stream and drive them through the engine's
event loop. Each event has a source artifact and optional target and
headers; documents are separated by "---".

Relationships are read from the database and every plan is recorded
there. A failing event is logged and the loop continues with the next.
Ctrl-C stops the loop after the current event.

Example:
  brix run --db ./brix.db ./routes events.yaml
  brix run --db postgres://brix@localhost/brix ./routes events.yaml --verbose`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "relationship and run database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runEngine(opts *RunOptions, routesPath, eventsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	routes, err := loadValidRoutes(formatter, routesPath)
	if err != nil {
		return err
	}
	logger.Info("routes loaded", "path", routesPath, "routes", len(routes))

	steps, err := readEvents(eventsPath)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	st, err := openStore(ctx, opts.Database)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	before, err := st.ListRuns(ctx, "")
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to read runs: %v", err), nil)
	}

	engineOpts := []engine.EngineOption{
		engine.WithRelationships(st),
		engine.WithRecorder(st),
		engine.WithLogger(logger),
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDs(opts.RunIDs))
	}
	eng := engine.New(routes, engineOpts...)

	for i, step := range steps {
		ev, err := harness.BuildEvent(routes, step)
		if err != nil {
			return formatter.Fail(ErrCodeInputFailed, fmt.Sprintf("event %d: %v", i, err), nil)
		}
		eng.Enqueue(ev)
	}
	// Run drains the queue, then returns.
	eng.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	after, err := st.ListRuns(context.Background(), "")
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to read runs: %v", err), nil)
	}

	summary := RunSummary{Events: len(steps), Recorded: len(after) - len(before)}
	if formatter.IsJSON() {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "Processed %d event(s), recorded %d run(s)\n", summary.Events, summary.Recorded)
	return nil
}
