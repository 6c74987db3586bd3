package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainAction = "brix/action/v1"
	DomainPlan   = "brix/plan/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionDigest computes the content digest of an action.
// Credentials are not part of the digest.
func ActionDigest(a Action) (string, error) {
	canonical, err := MarshalCanonical(a.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("ActionDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// PlanDigest computes the digest of an ordered action list. Two runs that
// plan the same work produce the same digest.
func PlanDigest(route string, actions []Action) (string, error) {
	items := make([]any, len(actions))
	for i, a := range actions {
		items[i] = a.canonicalMap()
	}
	canonical, err := MarshalCanonical(map[string]any{
		"route":   route,
		"actions": items,
	})
	if err != nil {
		return "", fmt.Errorf("PlanDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}
