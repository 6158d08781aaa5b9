package governor_test

import (
	"testing"

	"codeberg.org/mutker/framectl/internal/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPresetTableOrdering(t *testing.T) {
	table := governor.DefaultPresetTable()

	require.Equal(t, 5, table.Len())
	assert.Equal(t, "ultra", table.At(0).Name)
	assert.Equal(t, "battery", table.At(table.Lowest()).Name)
	assert.Equal(t, 2, table.IndexOf("standard"))
	assert.Equal(t, -1, table.IndexOf("potato"))
}

func TestPresetNeighborAdjacency(t *testing.T) {
	table := governor.DefaultPresetTable()

	std := table.IndexOf("standard")
	assert.Equal(t, std-1, table.Neighbor(std, governor.Upgrade))
	assert.Equal(t, std+1, table.Neighbor(std, governor.Downgrade))

	// Boundaries return -1, never wrap.
	assert.Equal(t, -1, table.Neighbor(0, governor.Upgrade))
	assert.Equal(t, -1, table.Neighbor(table.Lowest(), governor.Downgrade))
}

func TestNewPresetTableValidation(t *testing.T) {
	_, err := governor.NewPresetTable(nil)
	require.Error(t, err, "Empty catalog must be rejected")

	_, err = governor.NewPresetTable([]governor.Preset{
		{Name: "a", GridWidth: 128, GridHeight: 128, ShaderComplexity: 0.5, VisualEffects: 0.5},
		{Name: "a", GridWidth: 64, GridHeight: 64, ShaderComplexity: 0.3, VisualEffects: 0.3},
	})
	require.Error(t, err, "Duplicate names must be rejected")

	_, err = governor.NewPresetTable([]governor.Preset{
		{Name: "low", GridWidth: 64, GridHeight: 64, ShaderComplexity: 0.3, VisualEffects: 0.3},
		{Name: "high", GridWidth: 512, GridHeight: 512, ShaderComplexity: 1.0, VisualEffects: 1.0},
	})
	require.Error(t, err, "Catalog must be ordered highest cost first")
}

func TestPresetAtClampsIndex(t *testing.T) {
	table := governor.DefaultPresetTable()

	assert.Equal(t, "ultra", table.At(-3).Name)
	assert.Equal(t, "battery", table.At(99).Name)
}
