package transform

import (
	"github.com/roach88/brix/internal/ir"
)

// Denormalizer converts generic artifacts to system-specific artifacts.
// It holds no per-call state and is safe for concurrent use.
type Denormalizer struct {
	opts options
}

// NewDenormalizer creates a Denormalizer. Without WithRegistry it uses
// DefaultRegistry.
func NewDenormalizer(opts ...Option) *Denormalizer {
	return &Denormalizer{opts: buildOptions(opts)}
}

// FromGeneric materializes a generic artifact as a target-side artifact.
func (d *Denormalizer) FromGeneric(route *ir.BRoute, generic ir.GenericArtifact) (ir.Artifact, []ir.Warning, error) {
	return d.FromGenericTo(route, ir.SideTarget, generic)
}

// FromGenericTo materializes a generic artifact for the given side. The
// artifact type comes from the registry entry of the side's system type.
func (d *Denormalizer) FromGenericTo(route *ir.BRoute, side ir.ResourceSide, generic ir.GenericArtifact) (ir.Artifact, []ir.Warning, error) {
	if route == nil {
		return ir.Artifact{}, nil, ir.NewConfigError("", "denormalize: no route supplied")
	}
	endpoint, ok := route.Endpoint(side)
	if !ok {
		return ir.Artifact{}, nil, ir.NewProgrammingError("denormalize: unknown resource side %q", side)
	}

	artifact, err := d.opts.registry.Build(endpoint)
	if err != nil {
		return ir.Artifact{}, nil, ir.WithRoute(err, route.Name)
	}
	artifactMap, ok := route.ArtifactMap(side, artifact.Type)
	if !ok {
		return ir.Artifact{}, nil, ir.NewConfigError(route.Name, "denormalize: no %s artifact map for artifact type %q", side, artifact.Type)
	}

	m := &mapper{route: route.Name, side: side, dir: fromGeneric, composer: d.opts.composer, logger: d.opts.logger}
	attrs, warnings, err := m.run(artifactMap.AttributeMaps, generic.Attributes)
	if err != nil {
		return ir.Artifact{}, nil, err
	}
	artifact.Attributes = attrs

	d.opts.logger.Info("denormalized artifact",
		"route", route.Name,
		"side", side,
		"artifact_type", artifact.Type,
		"attributes", len(attrs),
		"warnings", len(warnings))
	return artifact, warnings, nil
}
