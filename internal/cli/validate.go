package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/brix/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Routes int                        `json:"routes,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <routes>",
		Short: "Validate routes without writing output",
		Long: `Validate a route directory, .cue file or .json/.jsonc route list.

Checks that every route compiles, that rule conditions and action
parameters name mapped generic attributes, and that MATCHREGEX patterns
compile. All validation errors are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadRoutes(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Code != ErrCodeNotFound && loadErr.Code != ErrCodeScanError {
			// The routes exist but do not compile: a validation failure.
			return outputValidationErrors(formatter, []compiler.ValidationError{{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
			}})
		}
		return formatter.Fail(loadErrorCode(err), loadErrorMessage(err), nil)
	}

	formatter.VerboseLog("Loaded %s", routeFileLabel(path, loaded.FileCount))
	for _, r := range loaded.Routes {
		formatter.VerboseLog("Validating route: %s", r.Name)
	}

	if errs := compiler.Validate(loaded.Routes); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	return outputValidateSuccess(formatter, len(loaded.Routes))
}

func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}

func loadErrorMessage(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message
	}
	return err.Error()
}

func outputValidateSuccess(formatter *OutputFormatter, routes int) error {
	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Routes: routes})
	}

	fmt.Fprintf(formatter.Writer, "✓ All routes valid (%d)\n", routes)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.IsJSON() {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Route != "" {
			fmt.Fprintf(formatter.Writer, "route %s\n", err.Route)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
