package transform

import (
	"log/slog"

	"github.com/roach88/brix/internal/ir"
)

// Option configures a Normalizer or Denormalizer.
type Option func(*options)

type options struct {
	composer Composer
	logger   *slog.Logger
	registry *Registry
}

func buildOptions(opts []Option) options {
	o := options{
		composer: TemplateComposer{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	return o
}

// WithComposer sets the compose recipe evaluator.
func WithComposer(c Composer) Option {
	return func(o *options) { o.composer = c }
}

// WithLogger sets the logger for mapping decisions and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry sets the artifact registry used by the Denormalizer.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// Normalizer converts system-specific artifacts to generic artifacts.
// It holds no per-call state and is safe for concurrent use.
type Normalizer struct {
	opts options
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	return &Normalizer{opts: buildOptions(opts)}
}

// ToGeneric normalizes a source-side artifact.
func (n *Normalizer) ToGeneric(route *ir.BRoute, artifact ir.Artifact) (ir.GenericArtifact, []ir.Warning, error) {
	return n.ToGenericFrom(route, ir.SideSource, artifact)
}

// ToGenericFrom normalizes an artifact that lives on the given side of the
// route, using that side's artifact map and enum value maps.
func (n *Normalizer) ToGenericFrom(route *ir.BRoute, side ir.ResourceSide, artifact ir.Artifact) (ir.GenericArtifact, []ir.Warning, error) {
	if route == nil {
		return ir.GenericArtifact{}, nil, ir.NewConfigError("", "normalize: no route supplied")
	}
	artifactMap, ok := route.ArtifactMap(side, artifact.Type)
	if !ok {
		return ir.GenericArtifact{}, nil, ir.NewConfigError(route.Name, "normalize: no %s artifact map for artifact type %q", side, artifact.Type)
	}

	m := &mapper{route: route.Name, side: side, dir: toGeneric, composer: n.opts.composer, logger: n.opts.logger}
	attrs, warnings, err := m.run(artifactMap.AttributeMaps, artifact.Attributes)
	if err != nil {
		return ir.GenericArtifact{}, nil, err
	}

	n.opts.logger.Info("normalized artifact",
		"route", route.Name,
		"side", side,
		"artifact_type", artifact.Type,
		"attributes", len(attrs),
		"warnings", len(warnings))
	return ir.GenericArtifact{Type: ir.ArtifactGeneric, Attributes: attrs}, warnings, nil
}
