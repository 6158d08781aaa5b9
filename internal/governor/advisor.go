package governor

import "math"

// Rendering parameter envelopes for the advisor's derivations.
const (
	baseRenderDistance = 1000.0
	minRenderDistance  = 250.0
	baseBatchSize      = 256
	minBatchSize       = 32
	maxBatchSize       = 512
	cullingQuality     = 0.8
	skipFPSBase        = 30.0
	maxLODReduction    = 4.0
)

// RenderingHints are the concrete per-frame parameters handed back to the
// renderer.
type RenderingHints struct {
	DrawFraction           float64
	LODReductionFactor     float64
	DistanceCullingEnabled bool
	MaxRenderDistance      float64
	UpdateSkipFrames       int
	BatchSize              int
}

// Advisor translates quality state into rendering parameters. It is a pure
// function of its inputs: no side effects, no internal state, identical
// inputs always yield identical hints.
type Advisor struct{}

// Derive computes the hints for the given state and throughput.
func (Advisor) Derive(state QualityState, preset Preset, averageFPS float64) RenderingHints {
	drawFraction := clampFloat(state.ParticleCountMultiplier, 0, 1)

	lod := 1.0
	if state.QualityLevel < 1.0 && state.QualityLevel > 0 {
		lod = math.Min(1.0/state.QualityLevel, maxLODReduction)
	}

	culling := state.QualityLevel < cullingQuality || (averageFPS > 0 && averageFPS < skipFPSBase)
	distance := baseRenderDistance
	if culling {
		distance = math.Max(baseRenderDistance*state.QualityLevel, minRenderDistance)
	}

	// Under load, non-critical subsystem updates are spread across frames
	// rather than dropped outright.
	skip := 1
	if averageFPS > 0 && averageFPS < skipFPSBase {
		skip = int(math.Floor(skipFPSBase / averageFPS))
		if skip < 1 {
			skip = 1
		}
	}
	if preset.UpdateFrequency > skip {
		skip = preset.UpdateFrequency
	}

	batch := int(float64(baseBatchSize) * state.ParticleCountMultiplier)
	if batch < minBatchSize {
		batch = minBatchSize
	}
	if batch > maxBatchSize {
		batch = maxBatchSize
	}

	return RenderingHints{
		DrawFraction:           drawFraction,
		LODReductionFactor:     lod,
		DistanceCullingEnabled: culling,
		MaxRenderDistance:      distance,
		UpdateSkipFrames:       skip,
		BatchSize:              batch,
	}
}
