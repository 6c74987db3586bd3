package ir

// Action is one atomic unit of work for a system-specific adapter.
// It carries only the attributes it touches.
type Action struct {
	Name         string          `json:"name,omitempty"`
	Rule         string          `json:"rule"`
	Command      ActionCommand   `json:"command"`
	Side         ResourceSide    `json:"side"`
	EndpointURI  string          `json:"endpoint_uri"`
	SystemType   SystemType      `json:"system_type"`
	Credential   Credential      `json:"credential"`
	ArtifactType ArtifactType    `json:"artifact_type"`
	ArtifactKey  ArtifactKey     `json:"artifact_key,omitempty"` // empty until a relationship exists
	Artifact     GenericArtifact `json:"artifact"`
	Sequence     int64           `json:"sequence"`
}

// HasKey reports whether the action targets an existing artifact.
func (a Action) HasKey() bool {
	return a.ArtifactKey != ""
}

// Clone returns a deep copy.
func (a Action) Clone() Action {
	out := a
	out.Artifact = a.Artifact.Clone()
	return out
}

// canonicalMap renders the action for hashing. Credentials are excluded.
func (a Action) canonicalMap() map[string]any {
	attrs := make(map[string]any, a.Artifact.Len())
	for name, p := range a.Artifact.Attributes {
		entry := map[string]any{"type": string(p.Type.OrUnknown())}
		if v := ToAny(p.Value); v != nil {
			entry["value"] = v
		}
		attrs[name] = entry
	}
	m := map[string]any{
		"command":       string(a.Command),
		"side":          string(a.Side),
		"endpoint_uri":  a.EndpointURI,
		"system_type":   string(a.SystemType),
		"artifact_type": string(a.ArtifactType),
		"attributes":    attrs,
		"sequence":      a.Sequence,
	}
	if a.ArtifactKey != "" {
		m["artifact_key"] = string(a.ArtifactKey)
	}
	return m
}
