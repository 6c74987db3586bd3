package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/ir"
)

const seSyncJSONC = `{
	// One route, exported from the original configuration.
	"routes": [
		{
			"name": "se-sync",
			"source": {"name": "se-source", "uri": "http://source.example/api", "system_type": "SIMPLEEP", "credential": {}},
			"target": {"name": "se-target", "uri": "http://target.example/api", "system_type": "SIMPLEEP", "credential": {}},
			"source_maps": [
				{
					"artifact_type": "SEISSUE",
					"side": "SOURCE",
					"attribute_maps": [
						{"attribute_name": "severity", "generic_name": "severity", "type": "LONG"},
						/* trailing commas are fine */
						{"attribute_name": "state", "generic_name": "status", "type": "ENUM",
						 "value_maps": [{"side": "SOURCE", "attribute_value": "Open", "generic_value": "open"}]},
					],
				},
			],
			"target_maps": [
				{"artifact_type": "SEISSUE", "side": "TARGET",
				 "attribute_maps": [{"attribute_name": "sev", "generic_name": "severity", "type": "LONG"}]},
			],
			"rules": [
				{
					"sequence": 1,
					"name": "severity-sync",
					"conditions": [
						{"sequence": 1, "predicate_type": "ATTRIBUTE", "side": "SOURCE", "subject": "severity", "operator": "EQUALS", "pattern": "1"},
					],
					"actions": [
						{"sequence": 1, "command": "MODIFYATTRIBUTE", "side": "TARGET", "config": {"param_name": "severity"}},
					],
				},
			],
		},
	],
}`

func TestParseRoutesJSON(t *testing.T) {
	routes, err := ParseRoutesJSON([]byte(seSyncJSONC))
	require.NoError(t, err)
	require.Len(t, routes, 1)

	r := routes[0]
	assert.Equal(t, "se-sync", r.Name)
	assert.Equal(t, ir.SystemSimpleEndpoint, r.Target.SystemType)
	require.Len(t, r.SourceMaps[0].AttributeMaps, 2)
	assert.Equal(t, "status", r.SourceMaps[0].AttributeMaps[1].GenericName)
	assert.Equal(t, ir.CmdModifyAttribute, r.Rules[0].Actions[0].Command)
	assert.Equal(t, "severity", r.Rules[0].Actions[0].Config.ParamName)

	assert.Empty(t, Validate(routes))
}

func TestParseRoutesJSON_Empty(t *testing.T) {
	routes, err := ParseRoutesJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, routes)
	assert.Empty(t, routes)
}

func TestParseRoutesJSON_UnknownField(t *testing.T) {
	_, err := ParseRoutesJSON([]byte(`{"routes": [{"name": "r", "colour": "blue"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestParseRoutesJSON_Malformed(t *testing.T) {
	_, err := ParseRoutesJSON([]byte(`{"routes": [`))
	require.Error(t, err)
}

func TestReadRoutesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(seSyncJSONC), 0o644))

	routes, err := ReadRoutesFile(path)
	require.NoError(t, err)
	assert.Len(t, routes, 1)

	_, err = ReadRoutesFile(filepath.Join(t.TempDir(), "missing.jsonc"))
	require.Error(t, err)
}
