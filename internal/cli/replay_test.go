package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/store"
)

func tamperDigest(t *testing.T, db, runID string) {
	t.Helper()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	_, err = st.DB().Exec("UPDATE runs SET digest = ? WHERE id = ?", "tampered", runID)
	require.NoError(t, err)
}

func TestReplayCommand_AllDigestsMatch(t *testing.T) {
	db := setupTraceDB(t)

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, db)
	require.NoError(t, err)

	assert.Contains(t, out, "Replay Summary: 2 run(s)")
	assert.Contains(t, out, "✓ Run: run-1 (se-sync, 2 action(s))")
	assert.Contains(t, out, "✓ Run: run-2 (se-sync, 1 action(s))")
	assert.Contains(t, out, "✓ All plan digests verified")
}

func TestReplayCommand_DetectsTamperedDigest(t *testing.T) {
	db := setupTraceDB(t)
	tamperDigest(t, db, "run-2")

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, db)
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ Run: run-1")
	assert.Contains(t, out, "✗ Run: run-2")
	assert.Contains(t, out, "  stored:   tampered")
	assert.Contains(t, out, "✗ Plan digest verification failed")
}

func TestReplayCommand_SingleRunJSON(t *testing.T) {
	db := setupTraceDB(t)
	tamperDigest(t, db, "run-2")

	cmd := NewReplayCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, db, "--run", "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllMatched)
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, resp.Data.Runs[0].Stored, resp.Data.Runs[0].Computed)
}

func TestReplayCommand_MismatchJSON(t *testing.T) {
	db := setupTraceDB(t)
	tamperDigest(t, db, "run-1")

	cmd := NewReplayCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, db, "--route", "se-sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.AllMatched)
	assert.Equal(t, 2, resp.Data.TotalRuns)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_DIGEST", resp.Error.Code)
}

func TestReplayCommand_EmptyDatabase(t *testing.T) {
	db := newTestDB(t)

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestReplayCommand_RunNotFound(t *testing.T) {
	db := newTestDB(t)

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd, db, "--run", "run-404")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
