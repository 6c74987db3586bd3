package transform

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/brix/internal/ir"
)

// ArtifactBuilder creates an empty system-specific artifact for an endpoint.
type ArtifactBuilder func(endpoint ir.Endpoint) ir.Artifact

// Registry resolves the artifact shape of each system type.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[ir.SystemType]ArtifactBuilder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[ir.SystemType]ArtifactBuilder)}
}

// DefaultRegistry creates a registry holding the built-in system types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ir.SystemSimpleEndpoint, ArtifactOfType(ir.ArtifactSEIssue))
	return r
}

// ArtifactOfType returns a builder for artifacts of a fixed type.
func ArtifactOfType(t ir.ArtifactType) ArtifactBuilder {
	return func(endpoint ir.Endpoint) ir.Artifact {
		return ir.Artifact{Endpoint: endpoint, Type: t, Attributes: ir.Attributes{}}
	}
}

// Register sets the builder for a system type, replacing any previous one.
func (r *Registry) Register(system ir.SystemType, builder ArtifactBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[system] = builder
}

// Build creates the artifact for an endpoint. An unregistered system type
// is a configuration error.
func (r *Registry) Build(endpoint ir.Endpoint) (ir.Artifact, error) {
	r.mu.RLock()
	builder, ok := r.builders[endpoint.SystemType]
	r.mu.RUnlock()
	if !ok {
		return ir.Artifact{}, ir.NewConfigError("", "no artifact builder registered for system type %q (endpoint %s)", endpoint.SystemType, endpoint.Name)
	}
	return builder(endpoint), nil
}

// SystemTypes lists registered system types in sorted order.
func (r *Registry) SystemTypes() []ir.SystemType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.builders))
}
