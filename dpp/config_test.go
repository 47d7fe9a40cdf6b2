package dpp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func Test_FilterSpec_YAMLRoundTrip(t *testing.T) {
	spec := AverageSpec

	out, err := yaml.Marshal(spec)
	require.NoError(t, err)

	var decoded FilterSpec
	require.NoError(t, yaml.Unmarshal(out, &decoded))

	assert.Equal(t, spec.Name, decoded.Name)
	assert.Equal(t, spec.Inputs, decoded.Inputs)
	assert.Equal(t, spec.Outputs, decoded.Outputs)
	assert.Equal(t, spec.Params, decoded.Params)
}

func Test_Parameter_YAMLRoundTrip(t *testing.T) {
	var testData = []Parameter{
		{Name: "normalise", Value: BoolValue(true)},
		{Name: "frequency", Value: Float64Value(2.5)},
		{Name: "channel", Value: Uint32Value(7)},
	}

	for _, p := range testData {
		out, err := yaml.Marshal(p)
		require.NoError(t, err)

		var decoded Parameter
		require.NoError(t, yaml.Unmarshal(out, &decoded))

		assert.Equal(t, p.Name, decoded.Name)
		assert.Equal(t, p.Value, decoded.Value)
	}
}

func Test_GraphColour_Resolve(t *testing.T) {
	rgb := GraphColour{Kind: ColourRGB, R: 10, G: 20, B: 30}
	assert.Equal(t, RGB{10, 20, 30}, rgb.Resolve())

	hsv := GraphColour{Kind: ColourHSV, H: 120, S: 100, V: 100}
	assert.Equal(t, RGB{0, 255, 0}, hsv.Resolve())
}

func Test_LoadLibraryFile_RoundTrip(t *testing.T) {
	lib := singleChannelToGraphLib()

	out, err := yaml.Marshal(lib)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "library.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o644))

	loaded, err := LoadLibraryFile(path)
	require.NoError(t, err)
	require.Len(t, loaded.Setup, 1)
	assert.Equal(t, "default", loaded.Setup[0].Name)

	setup, err := loaded.FindSetup(0)
	require.NoError(t, err)
	assert.Equal(t, EmissionContinuous, setup.Emission)

	pipeline, err := loaded.FindPipeline("passthrough")
	require.NoError(t, err)
	assert.Len(t, pipeline.Stages, 1)
}

func Test_LoadLibraryFile_UnknownPath(t *testing.T) {
	_, err := LoadLibraryFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func Test_FindSetup_OutOfRange(t *testing.T) {
	lib := &LibraryFile{}
	_, err := lib.FindSetup(0)
	assert.Error(t, err)
}
