package ir

// Run is the stored record of one processing run against one route.
type Run struct {
	// ID is the run identifier (UUIDv7 in production).
	ID string `json:"id"`

	// Seq orders runs in the store. It is assigned on write.
	Seq int64 `json:"seq"`

	Route          string      `json:"route"`
	SourceEndpoint string      `json:"source_endpoint"`
	SourceKey      ArtifactKey `json:"source_key,omitempty"`
	HasDeltas      bool        `json:"has_deltas"`
	FiredRules     []string    `json:"fired_rules"`
	Actions        []Action    `json:"actions"`
	Warnings       []Warning   `json:"warnings,omitempty"`

	// Digest is the PlanDigest of Route and Actions.
	Digest string `json:"digest"`
}
