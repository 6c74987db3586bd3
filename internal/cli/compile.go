package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/brix/internal/compiler"
	"github.com/roach88/brix/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file for the compiled route list (optional)
}

// CompilationResult holds the compiled route set. Its JSON form is the
// route list format, so a written file loads back with any command that
// takes <routes>.
type CompilationResult struct {
	Routes ir.RouteSet `json:"routes"`
}

// CompilationStats summarizes a compiled route set.
type CompilationStats struct {
	Routes        int `json:"routes"`
	Rules         int `json:"rules"`
	AttributeMaps int `json:"attribute_maps"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <routes>",
		Short: "Compile routes to the JSON route list",
		Long: `Compile a route directory, .cue file or .json/.jsonc route list.

The compiled routes are validated and written as an indented JSON route
list. Credentials are written as configured; keep the output private.

Examples:
  brix compile ./routes
  brix compile ./routes -o routes.json
  brix compile ./routes/se.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file for the compiled route list")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadRoutes(path)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}
	formatter.VerboseLog("Loaded %s", routeFileLabel(path, loaded.FileCount))

	if verrs := compiler.Validate(loaded.Routes); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return outputCompileErrors(formatter, errs)
	}

	result := &CompilationResult{Routes: loaded.Routes}

	if opts.Output != "" {
		if err := writeRoutesToFile(result, opts.Output); err != nil {
			return formatter.Fail(ErrCodeWriteFailed, fmt.Sprintf("failed to write output file: %v", err), nil)
		}
		formatter.VerboseLog("Wrote route list to %s", opts.Output)
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// calculateStats counts routes, rules and artifact maps on both sides.
func calculateStats(routes ir.RouteSet) CompilationStats {
	stats := CompilationStats{Routes: len(routes)}
	for _, r := range routes {
		stats.Rules += len(r.Rules)
		stats.AttributeMaps += len(r.SourceMaps) + len(r.TargetMaps)
	}
	return stats
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	stats := calculateStats(result.Routes)

	if formatter.IsJSON() {
		data := map[string]any{
			"stats": stats,
		}
		if outputFile != "" {
			data["output"] = outputFile
		} else {
			data["routes"] = result.Routes
		}
		return formatter.Success(data)
	}

	fmt.Fprintln(formatter.Writer, "✓ Compilation successful")
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "Routes: %d, rules: %d, artifact maps: %d\n",
		stats.Routes, stats.Rules, stats.AttributeMaps)
	fmt.Fprintln(formatter.Writer)

	for _, r := range result.Routes {
		fmt.Fprintf(formatter.Writer, "  %s: %s → %s, %d rule(s)\n",
			r.Name, r.Source.Name, r.Target.Name, len(r.Rules))
	}

	if outputFile != "" {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintf(formatter.Writer, "Wrote route list to %s\n", outputFile)
	}
	return nil
}

// outputCompileErrors reports load and validation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.IsJSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		msg := verr.Field + ": " + verr.Message
		if verr.Route != "" {
			msg = fmt.Sprintf("route %q: %s", verr.Route, msg)
		}
		return verr.Code, msg
	}
	return ErrCodeGeneric, err.Error()
}

// writeRoutesToFile writes the route list as indented JSON.
func writeRoutesToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling routes: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
