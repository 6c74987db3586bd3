package engine

import "github.com/roach88/brix/internal/ir"

// Extract tells an adapter where to fetch an artifact from.
type Extract struct {
	Side       ir.ResourceSide `json:"side"`
	Endpoint   string          `json:"endpoint"`
	SystemType ir.SystemType   `json:"system_type"`
	FetchURI   string          `json:"fetch_uri"`
	Key        ir.ArtifactKey  `json:"key"`
}

// PrepareExtract resolves the fetch location of the artifact on side.
// The key comes from the first relationship; without one there is nothing
// to fetch and a configuration error is returned.
func PrepareExtract(route *ir.BRoute, side ir.ResourceSide, relationships []ir.ArtifactRelationship) (Extract, error) {
	if route == nil {
		return Extract{}, ir.NewConfigError("", "no route to extract from")
	}
	endpoint, ok := route.Endpoint(side)
	if !ok {
		return Extract{}, ir.NewProgrammingError("unsupported resource side %q", side)
	}
	if len(relationships) == 0 {
		return Extract{}, ir.NewConfigError(route.Name, "no artifact relationship to extract %s artifact", side)
	}

	ref, _ := relationships[0].Ref(side)
	return Extract{
		Side:       side,
		Endpoint:   endpoint.Name,
		SystemType: endpoint.SystemType,
		FetchURI:   endpoint.FetchArtifactURI,
		Key:        ref.Key,
	}, nil
}
