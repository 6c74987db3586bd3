package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/transform"
)

// TransformOptions holds flags for the normalize and denormalize commands.
type TransformOptions struct {
	*RootOptions
	Route string
	Side  string
}

// TransformResult is the output of normalize and denormalize.
type TransformResult struct {
	Route    string       `json:"route"`
	Side     string       `json:"side"`
	Artifact any          `json:"artifact"`
	Warnings []ir.Warning `json:"warnings,omitempty"`
}

// genericDocument is a generic artifact file: attributes keyed by generic
// name, in the same bare or {value, type, traits} forms as artifact files.
type genericDocument struct {
	Attributes map[string]any `yaml:"attributes"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransformOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize <routes> <artifact-file>",
		Short: "Convert a system artifact to its generic form",
		Long: `Normalize a system-specific artifact with a route's attribute map.

The route and side are chosen from the artifact's endpoint: the first
route with that source endpoint, or else the first with that target
endpoint. --route and --side override the choice.

Example:
  brix normalize ./routes issue.yaml
  brix normalize ./routes counterpart.yaml --route se-sync --side TARGET`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Route, "route", "", "route name")
	cmd.Flags().StringVar(&opts.Side, "side", "", "SOURCE or TARGET")

	return cmd
}

// NewDenormalizeCommand creates the denormalize command.
func NewDenormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransformOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "denormalize <routes> <generic-file>",
		Short: "Convert a generic artifact to a system artifact",
		Long: `Denormalize a generic artifact for one side of a route.

The generic file holds attributes keyed by generic name:

  attributes:
    severity: 1
    status: closed

Example:
  brix denormalize ./routes generic.yaml --route se-sync
  brix denormalize ./routes generic.yaml --route se-sync --side SOURCE`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDenormalize(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Route, "route", "", "route name (required)")
	_ = cmd.MarkFlagRequired("route")
	cmd.Flags().StringVar(&opts.Side, "side", string(ir.SideTarget), "SOURCE or TARGET")

	return cmd
}

func runNormalize(opts *TransformOptions, routesPath, artifactPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	routes, err := loadValidRoutes(formatter, routesPath)
	if err != nil {
		return err
	}

	step, err := readArtifact(artifactPath)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}
	artifact, err := artifactFromStep(routes, step)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}

	route, side, err := selectRoute(routes, opts, step.Endpoint)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}

	n := transform.NewNormalizer(transform.WithLogger(engineLogger(formatter)))
	generic, warnings, err := n.ToGenericFrom(route, side, artifact)
	if err != nil {
		return outputSyncError(formatter, err)
	}

	return outputTransform(formatter, TransformResult{
		Route:    route.Name,
		Side:     string(side),
		Artifact: generic,
		Warnings: warnings,
	}, generic.Attributes)
}

func runDenormalize(opts *TransformOptions, routesPath, genericPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	routes, err := loadValidRoutes(formatter, routesPath)
	if err != nil {
		return err
	}

	var doc genericDocument
	if err := readDocument(genericPath, &doc); err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}
	attrs, err := ir.AttributesFromMap(doc.Attributes)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, fmt.Sprintf("%s: %v", genericPath, err), nil)
	}
	generic := ir.GenericArtifact{Type: ir.ArtifactGeneric, Attributes: attrs}

	route, side, err := selectRoute(routes, opts, "")
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}

	d := transform.NewDenormalizer(transform.WithLogger(engineLogger(formatter)))
	artifact, warnings, err := d.FromGenericTo(route, side, generic)
	if err != nil {
		return outputSyncError(formatter, err)
	}
	artifact.Endpoint.Credential = ir.Credential{}

	return outputTransform(formatter, TransformResult{
		Route:    route.Name,
		Side:     string(side),
		Artifact: artifact,
		Warnings: warnings,
	}, artifact.Attributes)
}

// selectRoute picks the route and side to transform with. Explicit flags
// win; otherwise the endpoint name is matched against source endpoints
// first, then target endpoints.
func selectRoute(routes ir.RouteSet, opts *TransformOptions, endpoint string) (*ir.BRoute, ir.ResourceSide, error) {
	var side ir.ResourceSide
	if opts.Side != "" {
		parsed, err := ir.ParseResourceSide(opts.Side)
		if err != nil {
			return nil, "", err
		}
		side = parsed
	}

	if opts.Route != "" {
		route, ok := routes.Lookup(opts.Route)
		if !ok {
			return nil, "", fmt.Errorf("route %q not found", opts.Route)
		}
		if side == "" {
			side = ir.SideSource
			if route.Source.Name != endpoint && route.Target.Name == endpoint {
				side = ir.SideTarget
			}
		}
		return route, side, nil
	}

	for _, candidate := range []ir.ResourceSide{ir.SideSource, ir.SideTarget} {
		if side != "" && side != candidate {
			continue
		}
		for i := range routes {
			ep, _ := routes[i].Endpoint(candidate)
			if ep.Name == endpoint {
				return &routes[i], candidate, nil
			}
		}
	}
	return nil, "", fmt.Errorf("no route has endpoint %q", endpoint)
}

func outputTransform(formatter *OutputFormatter, result TransformResult, attrs ir.Attributes) error {
	if formatter.IsJSON() {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Route %s, side %s\n", result.Route, result.Side)
	writeAttributes(w, attrs)
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	return nil
}

// writeAttributes prints one attribute per line in name order.
func writeAttributes(w io.Writer, attrs ir.Attributes) {
	for _, name := range attrs.Names() {
		p := attrs[name]
		fmt.Fprintf(w, "  %s (%s) = %s\n", name, p.Type.OrUnknown(), ir.FormatValue(p.Value))
	}
}
