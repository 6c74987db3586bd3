package transform

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/testutil"
)

func genericIssue() ir.GenericArtifact {
	g := ir.NewGenericArtifact()
	g.Add("severity", ir.Long(2), nil, ir.AttrLong)
	g.Add("title", ir.String("Crash on save"), nil, ir.AttrString)
	g.Add("status", ir.String("closed"), nil, ir.AttrEnum)
	g.Add("created", ir.NewInstant(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)), nil, ir.AttrDate)
	return g
}

func TestDenormalizerFromGeneric(t *testing.T) {
	route := testutil.Route()
	art, warnings, err := NewDenormalizer().FromGeneric(route, genericIssue())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, ir.ArtifactSEIssue, art.Type)
	assert.Equal(t, route.Target, art.Endpoint)
	assert.Equal(t, ir.Long(2), art.Attributes.Value("sev"))
	assert.Equal(t, ir.String("Crash on save"), art.Attributes.Value("summary"))
	assert.Equal(t, ir.String("DONE"), art.Attributes.Value("workflow"))
	assert.Equal(t, ir.String("2024/03/01 10:30"), art.Attributes.Value("opened"))
	assert.Equal(t, ir.String("Crash on save (sev 2)"), art.Attributes.Value("headline"))
	assert.Nil(t, art.Attributes.Value("body"))
}

func TestDenormalizerMissingRoute(t *testing.T) {
	art, warnings, err := NewDenormalizer().FromGeneric(nil, genericIssue())
	require.Error(t, err)
	assert.True(t, ir.IsConfigError(err))
	assert.Nil(t, warnings)
	assert.Equal(t, ir.Artifact{}, art, "no artifact is produced")
}

func TestDenormalizerUnregisteredSystem(t *testing.T) {
	route := testutil.Route()
	route.Target.SystemType = "JIRA"

	_, _, err := NewDenormalizer().FromGeneric(route, genericIssue())
	require.Error(t, err)
	assert.True(t, ir.IsConfigError(err))
	assert.Contains(t, err.Error(), "se-sync")
}

func TestDenormalizerCustomRegistry(t *testing.T) {
	route := testutil.Route()
	route.Target.SystemType = "JIRA"
	route.TargetMaps[0].ArtifactType = "BUG"

	reg := NewRegistry()
	reg.Register("JIRA", ArtifactOfType("BUG"))

	art, _, err := NewDenormalizer(WithRegistry(reg)).FromGeneric(route, genericIssue())
	require.NoError(t, err)
	assert.Equal(t, ir.ArtifactType("BUG"), art.Type)
	assert.Equal(t, []ir.SystemType{"JIRA"}, reg.SystemTypes())
}

func TestDenormalizerMissingTargetMap(t *testing.T) {
	route := testutil.Route()
	route.TargetMaps = nil

	_, _, err := NewDenormalizer().FromGeneric(route, genericIssue())
	require.Error(t, err)
	assert.True(t, ir.IsConfigError(err))
}

func TestDenormalizerNonInstantDateIsFatal(t *testing.T) {
	g := genericIssue()
	g.Add("created", ir.Long(5), nil, ir.AttrDate)

	art, _, err := NewDenormalizer().FromGeneric(testutil.Route(), g)
	require.Error(t, err)
	assert.True(t, ir.IsDataError(err))
	assert.Nil(t, art.Attributes)
}

func TestDenormalizerUnmappedEnumWarns(t *testing.T) {
	g := genericIssue()
	g.Add("status", ir.String("triage"), nil, ir.AttrEnum)

	art, warnings, err := NewDenormalizer().FromGeneric(testutil.Route(), g)
	require.NoError(t, err)
	assert.Equal(t, ir.String("triage"), art.Attributes.Value("workflow"))
	require.Len(t, warnings, 1)
	assert.Equal(t, "status", warnings[0].Attribute)
}

func TestDenormalizerComposeError(t *testing.T) {
	failing := ComposerFunc(func(string, ir.Attributes) (ir.Value, error) {
		return nil, errors.New("recipe broken")
	})

	_, _, err := NewDenormalizer(WithComposer(failing)).FromGeneric(testutil.Route(), genericIssue())
	require.Error(t, err)
	assert.True(t, ir.IsDataError(err))
	assert.ErrorContains(t, err, "recipe broken")
}

func TestRoundTripThroughGeneric(t *testing.T) {
	route := testutil.Route()
	generic := genericIssue()

	art, _, err := NewDenormalizer().FromGeneric(route, generic)
	require.NoError(t, err)
	back, _, err := NewNormalizer().ToGenericFrom(route, ir.SideTarget, art)
	require.NoError(t, err)

	for _, name := range []string{"severity", "title", "status", "created"} {
		assert.True(t, ir.ValueEquals(generic.Attributes[name], back.Attributes[name]), name)
	}
}
