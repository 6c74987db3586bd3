package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/brix/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with one MODIFYATTRIBUTE action.
func createTestRun(id, route string) ir.Run {
	g := ir.NewGenericArtifact()
	g.Add("severity", ir.Long(1), ir.Traits{"group": "triage"}, ir.AttrLong)
	g.Add("labels", ir.StringList{"a", "b"}, nil, ir.AttrMultiValue)

	return ir.Run{
		ID:             id,
		Route:          route,
		SourceEndpoint: "se-source",
		SourceKey:      "SRC-1",
		HasDeltas:      true,
		FiredRules:     []string{"severity-sync"},
		Actions: []ir.Action{{
			Rule:         "severity-sync",
			Command:      ir.CmdModifyAttribute,
			Side:         ir.SideTarget,
			EndpointURI:  "http://target.example/api",
			SystemType:   ir.SystemSimpleEndpoint,
			Credential:   ir.Credential{User: "bot", Secret: "token"},
			ArtifactType: ir.ArtifactGeneric,
			ArtifactKey:  "TGT-1",
			Artifact:     g,
			Sequence:     1,
		}},
		Warnings: []ir.Warning{{
			Code:      ir.WarnMissingAttribute,
			Attribute: "comment",
			Message:   "attribute not in delta",
		}},
		Digest: "digest-" + id,
	}
}
