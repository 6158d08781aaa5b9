package governor

import "codeberg.org/mutker/framectl/internal/errors"

// Preset is an immutable bundle of quality-related simulation parameters.
type Preset struct {
	Name             string
	GridWidth        int
	GridHeight       int
	ShaderComplexity float64
	VisualEffects    float64
	UpdateFrequency  int
}

// Direction selects a neighbor in the preset ordering.
type Direction int

const (
	// Upgrade moves toward the highest-cost preset (lower index).
	Upgrade Direction = iota
	// Downgrade moves toward the lowest-cost preset (higher index).
	Downgrade
)

// PresetTable is an ordered catalog of presets, highest resource cost first.
// The ordering defines transition adjacency: a controller may only move to an
// immediate neighbor in one step.
type PresetTable struct {
	presets []Preset
}

// DefaultPresetTable returns the built-in catalog.
func DefaultPresetTable() PresetTable {
	return PresetTable{presets: []Preset{
		{Name: "ultra", GridWidth: 512, GridHeight: 512, ShaderComplexity: 1.0, VisualEffects: 1.0, UpdateFrequency: 1},
		{Name: "high", GridWidth: 384, GridHeight: 384, ShaderComplexity: 0.85, VisualEffects: 0.8, UpdateFrequency: 1},
		{Name: "standard", GridWidth: 256, GridHeight: 256, ShaderComplexity: 0.7, VisualEffects: 0.6, UpdateFrequency: 1},
		{Name: "performance", GridWidth: 192, GridHeight: 192, ShaderComplexity: 0.5, VisualEffects: 0.35, UpdateFrequency: 2},
		{Name: "battery", GridWidth: 128, GridHeight: 128, ShaderComplexity: 0.3, VisualEffects: 0.15, UpdateFrequency: 3},
	}}
}

// NewPresetTable builds a table from an explicit catalog, validating ordering
// and name uniqueness.
func NewPresetTable(presets []Preset) (PresetTable, error) {
	errFactory := errors.New()

	if len(presets) == 0 {
		return PresetTable{}, errFactory.New(ErrEmptyPresets)
	}

	seen := make(map[string]struct{}, len(presets))
	for i, p := range presets {
		if p.Name == "" {
			return PresetTable{}, errFactory.WithData(ErrDuplicateName, i)
		}
		if _, dup := seen[p.Name]; dup {
			return PresetTable{}, errFactory.WithData(ErrDuplicateName, p.Name)
		}
		seen[p.Name] = struct{}{}

		if i > 0 && costRank(p) > costRank(presets[i-1]) {
			return PresetTable{}, errFactory.WithData(ErrPresetOrder, p.Name)
		}
	}

	table := PresetTable{presets: make([]Preset, len(presets))}
	copy(table.presets, presets)

	return table, nil
}

// costRank is a coarse ordering key used only to catch catalogs listed in the
// wrong direction.
func costRank(p Preset) float64 {
	return float64(p.GridWidth*p.GridHeight) * (p.ShaderComplexity + p.VisualEffects)
}

func (t PresetTable) Len() int {
	return len(t.presets)
}

// At returns the preset at index, clamped to the table bounds.
func (t PresetTable) At(index int) Preset {
	if index < 0 {
		index = 0
	}
	if index >= len(t.presets) {
		index = len(t.presets) - 1
	}

	return t.presets[index]
}

// IndexOf returns the index of the named preset, or -1 when unknown.
func (t PresetTable) IndexOf(name string) int {
	for i, p := range t.presets {
		if p.Name == name {
			return i
		}
	}

	return -1
}

// Neighbor returns the adjacent index in the given direction, or -1 at the
// table boundary. Callers must never skip a level in one transition.
func (t PresetTable) Neighbor(index int, dir Direction) int {
	next := index
	switch dir {
	case Upgrade:
		next--
	case Downgrade:
		next++
	}

	if next < 0 || next >= len(t.presets) || index < 0 || index >= len(t.presets) {
		return -1
	}

	return next
}

// Lowest returns the index of the cheapest preset.
func (t PresetTable) Lowest() int {
	return len(t.presets) - 1
}
