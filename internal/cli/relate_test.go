package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/ir"
)

func addRelationship(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRelateCommand(&RootOptions{Format: "text"})
	return execute(t, cmd, append([]string{"add", db}, args...)...)
}

func TestRelateAdd(t *testing.T) {
	db := newTestDB(t)

	out, err := addRelationship(t, db,
		"--id", "rel-1",
		"--source", "se-source/SEISSUE/SRC-1",
		"--target", "se-target/SEISSUE/TGT-1",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Relationship rel-1")
	assert.Contains(t, out, "  se-source/SEISSUE/SRC-1 → se-target/SEISSUE/TGT-1")
	assert.Contains(t, out, "  state ACTIVE, status COMPLETED")
}

func TestRelateAdd_KeepsFirstRecord(t *testing.T) {
	db := newTestDB(t)

	_, err := addRelationship(t, db, "--id", "rel-1",
		"--source", "se-source/SEISSUE/SRC-1", "--target", "se-target/SEISSUE/TGT-1")
	require.NoError(t, err)

	out, err := addRelationship(t, db, "--id", "rel-1",
		"--source", "se-source/SEISSUE/SRC-1", "--target", "se-target/SEISSUE/TGT-9")
	require.NoError(t, err)
	assert.Contains(t, out, "se-target/SEISSUE/TGT-1")
	assert.NotContains(t, out, "TGT-9")
}

func TestRelateAdd_JSON(t *testing.T) {
	db := newTestDB(t)

	cmd := NewRelateCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, "add", db,
		"--id", "rel-2",
		"--source", "se-source/SEISSUE/SRC-2",
		"--target", "se-target/SEISSUE/PROJ/TGT-2",
		"--description", "imported",
		"--status", "ERROR",
		"--state", "inactive",
	)
	require.NoError(t, err)

	var resp struct {
		Status string                  `json:"status"`
		Data   ir.ArtifactRelationship `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "rel-2", resp.Data.ID)
	assert.Equal(t, "SRC-2->PROJ/TGT-2", resp.Data.Name)
	assert.Equal(t, "imported", resp.Data.Description)
	assert.Equal(t, ir.ArtifactKey("PROJ/TGT-2"), resp.Data.Target.Key)
	assert.Equal(t, ir.StatusError, resp.Data.Status)
	assert.Equal(t, ir.StateInactive, resp.Data.State)
}

func TestRelateAdd_InvalidArtifact(t *testing.T) {
	db := newTestDB(t)

	out, err := addRelationship(t, db, "--id", "rel-1",
		"--source", "se-source/SRC-1", "--target", "se-target/SEISSUE/TGT-1")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `invalid artifact "se-source/SRC-1": want endpoint/TYPE/key`)
}

func TestRelateAdd_InvalidStatus(t *testing.T) {
	db := newTestDB(t)

	_, err := addRelationship(t, db, "--id", "rel-1",
		"--source", "se-source/SEISSUE/SRC-1", "--target", "se-target/SEISSUE/TGT-1",
		"--status", "DONE")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRelateList(t *testing.T) {
	db := newTestDB(t)
	seedRelationship(t, db)
	_, err := addRelationship(t, db, "--id", "rel-2",
		"--source", "se-source/SEISSUE/SRC-2", "--target", "se-target/SEISSUE/TGT-2")
	require.NoError(t, err)

	cmd := NewRelateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, "list", db)
	require.NoError(t, err)

	assert.Contains(t, out, "rel-1\n")
	assert.Contains(t, out, "rel-2\n")
	assert.Less(t, strings.Index(out, "rel-1"), strings.Index(out, "rel-2"))
}

func TestRelateList_BySourceKey(t *testing.T) {
	db := newTestDB(t)
	seedRelationship(t, db)
	_, err := addRelationship(t, db, "--id", "rel-2",
		"--source", "se-source/SEISSUE/SRC-2", "--target", "se-target/SEISSUE/TGT-2")
	require.NoError(t, err)

	cmd := NewRelateCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, "list", db, "--source-key", "SRC-2")
	require.NoError(t, err)

	var resp struct {
		Data []ir.ArtifactRelationship `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "rel-2", resp.Data[0].ID)
}

func TestRelateList_Empty(t *testing.T) {
	db := newTestDB(t)

	cmd := NewRelateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, "list", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No relationships found.")
}

func TestRelateStatus(t *testing.T) {
	db := newTestDB(t)
	seedRelationship(t, db)

	cmd := NewRelateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, "status", db, "rel-1", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ rel-1 status ERROR")

	cmd = NewRelateCommand(&RootOptions{Format: "json"})
	out, err = execute(t, cmd, "list", db)
	require.NoError(t, err)

	var resp struct {
		Data []ir.ArtifactRelationship `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, ir.StatusError, resp.Data[0].Status)
	assert.Positive(t, resp.Data[0].LastTransaction)
}

func TestRelateStatus_NotFound(t *testing.T) {
	db := newTestDB(t)

	cmd := NewRelateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, "status", db, "rel-404", "COMPLETED")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]: relationship not found: rel-404")
}

func TestParseArtifactRef(t *testing.T) {
	ref, err := parseArtifactRef("se-target/SEISSUE/PROJ/TGT-2")
	require.NoError(t, err)
	assert.Equal(t, ir.ArtifactRef{Endpoint: "se-target", Type: "SEISSUE", Key: "PROJ/TGT-2"}, ref)

	for _, bad := range []string{"", "se-target", "se-target/SEISSUE", "/SEISSUE/K", "se-target//K", "se-target/SEISSUE/"} {
		_, err := parseArtifactRef(bad)
		assert.Error(t, err, bad)
	}
}
