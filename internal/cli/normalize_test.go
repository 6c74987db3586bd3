package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCommand_SourceArtifact(t *testing.T) {
	cmd := NewNormalizeCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, routesDir, eventFile("source_related.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Route se-sync, side SOURCE")
	assert.Contains(t, out, "  severity (LONG) = 1")
	assert.Contains(t, out, "  status (ENUM) = open")
	assert.Contains(t, out, "  title (STRING) = Crash on save")
	assert.NotContains(t, out, "warning")
}

func TestNormalizeCommand_PicksTargetSide(t *testing.T) {
	cmd := NewNormalizeCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, routesDir, eventFile("target_related.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Route se-sync, side TARGET")
	assert.Contains(t, out, "  severity (LONG) = 3")
	assert.Contains(t, out, "  status (ENUM) = open")
}

func TestNormalizeCommand_UnmappedEnumWarnsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`endpoint: se-source
type: SEISSUE
key: SRC-5
attributes:
  state: Blocked
`), 0644))

	cmd := NewNormalizeCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, routesDir, path, "--route", "se-sync", "--side", "SOURCE")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Route    string `json:"route"`
			Side     string `json:"side"`
			Warnings []struct {
				Code      string `json:"code"`
				Attribute string `json:"attribute"`
			} `json:"warnings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "se-sync", resp.Data.Route)
	assert.Equal(t, "SOURCE", resp.Data.Side)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Equal(t, "UNMAPPED_ENUM", resp.Data.Warnings[0].Code)
	assert.Equal(t, "state", resp.Data.Warnings[0].Attribute)
}

func TestNormalizeCommand_UnknownEndpoint(t *testing.T) {
	cmd := NewNormalizeCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, routesDir, eventFile("source_unknown.yaml"))
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `no route has endpoint "nowhere"`)
}

func TestNormalizeCommand_UnknownRoute(t *testing.T) {
	cmd := NewNormalizeCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, routesDir, eventFile("source_related.yaml"), "--route", "nope")
	require.Error(t, err)
	assert.Contains(t, out, `route "nope" not found`)
}

func TestNormalizeCommand_InvalidSide(t *testing.T) {
	cmd := NewNormalizeCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd, routesDir, eventFile("source_related.yaml"), "--side", "MIDDLE")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDenormalizeCommand_TargetSide(t *testing.T) {
	cmd := NewDenormalizeCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, routesDir, eventFile("generic.yaml"), "--route", "se-sync")
	require.NoError(t, err)

	assert.Contains(t, out, "Route se-sync, side TARGET")
	assert.Contains(t, out, "  sev (LONG) = 1")
	assert.Contains(t, out, "  workflow (ENUM) = DONE")
	assert.Contains(t, out, "  summary (STRING) = Crash on save")
}

func TestDenormalizeCommand_SourceSideJSON(t *testing.T) {
	cmd := NewDenormalizeCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, routesDir, eventFile("generic.yaml"), "--route", "se-sync", "--side", "SOURCE")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Side     string `json:"side"`
			Artifact struct {
				Attributes map[string]struct {
					Value any `json:"value"`
				} `json:"attributes"`
			} `json:"artifact"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "SOURCE", resp.Data.Side)
	assert.Equal(t, "Closed", resp.Data.Artifact.Attributes["state"].Value)
	assert.NotContains(t, out, "src-token")
}

func TestDenormalizeCommand_RequiresRoute(t *testing.T) {
	cmd := NewDenormalizeCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd, routesDir, eventFile("generic.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route")
}

func TestSelectRoute(t *testing.T) {
	loaded, err := LoadRoutes(routesDir)
	require.NoError(t, err)

	tests := []struct {
		name     string
		opts     TransformOptions
		endpoint string
		wantSide string
		wantErr  string
	}{
		{name: "source endpoint", endpoint: "se-source", wantSide: "SOURCE"},
		{name: "target endpoint", endpoint: "se-target", wantSide: "TARGET"},
		{name: "named route, target endpoint", opts: TransformOptions{Route: "se-sync"}, endpoint: "se-target", wantSide: "TARGET"},
		{name: "explicit side wins", opts: TransformOptions{Route: "se-sync", Side: "TARGET"}, endpoint: "se-source", wantSide: "TARGET"},
		{name: "side filters the scan", opts: TransformOptions{Side: "TARGET"}, endpoint: "se-source", wantErr: "no route has endpoint"},
		{name: "unknown route", opts: TransformOptions{Route: "other"}, wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, side, err := selectRoute(loaded.Routes, &tt.opts, tt.endpoint)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "se-sync", route.Name)
			assert.Equal(t, tt.wantSide, string(side))
		})
	}
}
