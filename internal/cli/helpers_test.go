package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/engine"
	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/store"
	"github.com/roach88/brix/internal/testutil"
)

// routesDir is the se-sync route set shared with the harness scenarios.
var routesDir = filepath.Join("..", "harness", "testdata", "routes")

func eventFile(name string) string {
	return filepath.Join("testdata", "events", name)
}

// execute runs cmd with args and returns its stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// newTestDB returns the path of a fresh SQLite database.
func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brix.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return path
}

// seedRelationship relates SRC-1 to TGT-1 in the database at path.
func seedRelationship(t *testing.T, path string) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	rel := testutil.Relationship("rel-1", "SRC-1", "TGT-1")
	require.NoError(t, st.SaveRelationship(context.Background(), rel))
}

// recordPlan plans source against the database, recording one run with id.
func recordPlan(t *testing.T, db, id, source string, extra ...string) {
	t.Helper()
	cmd := newPlanCommand(&PlanOptions{
		RootOptions: &RootOptions{Format: "text"},
		RunIDs:      engine.NewFixedGenerator(id),
	})

	args := append([]string{routesDir, "--source", eventFile(source), "--db", db}, extra...)
	_, err := execute(t, cmd, args...)
	require.NoError(t, err)
}

func readRuns(t *testing.T, path string) []ir.Run {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), "")
	require.NoError(t, err)
	return runs
}
