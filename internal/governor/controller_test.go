package governor_test

import (
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/framectl/internal/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController() (*governor.Controller, governor.PresetTable) {
	table := governor.DefaultPresetTable()
	return governor.NewController(governor.DefaultConfig(), table), table
}

func TestControllerInitialState(t *testing.T) {
	c, table := newController()

	state := c.State()
	assert.Equal(t, table.IndexOf("standard"), state.PresetIndex)
	assert.Equal(t, 1.0, state.QualityLevel)
	assert.Equal(t, 1.0, state.ParticleCountMultiplier)
	assert.Equal(t, 1.0, state.ShaderComplexityLevel)
	assert.True(t, c.Enabled())
}

func TestControllerClamping(t *testing.T) {
	c, _ := newController()

	now := time.Unix(1000, 0)
	inputs := []float64{0.001, 10000, 0.5, 500, 1, 2000}
	for i := 0; i < 600; i++ {
		est := governor.ThroughputEstimate{AverageFPS: inputs[i%len(inputs)]}
		c.Adapt(est, governor.BottleneckCounters{}, now.Add(time.Duration(i)*time.Millisecond))

		state := c.State()
		require.GreaterOrEqual(t, state.QualityLevel, governor.MinQualityLevel)
		require.LessOrEqual(t, state.QualityLevel, governor.MaxQualityLevel)
		require.GreaterOrEqual(t, state.ParticleCountMultiplier, governor.MinParticleMult)
		require.LessOrEqual(t, state.ParticleCountMultiplier, governor.MaxParticleMult)
		require.GreaterOrEqual(t, state.ShaderComplexityLevel, governor.MinShaderLevel)
		require.LessOrEqual(t, state.ShaderComplexityLevel, governor.MaxShaderLevel)
	}
}

func TestControllerInvalidInputDropped(t *testing.T) {
	c, _ := newController()

	now := time.Unix(1000, 0)
	before := c.State()
	for _, avg := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -10, 0} {
		c.Adapt(governor.ThroughputEstimate{AverageFPS: avg}, governor.BottleneckCounters{}, now)
	}
	assert.Equal(t, before, c.State(), "Invalid throughput must not mutate state")
}

func TestControllerCooldownInvariant(t *testing.T) {
	cfg := governor.DefaultConfig()
	c := governor.NewController(cfg, governor.DefaultPresetTable())

	now := time.Unix(1000, 0)
	var transitions []time.Time
	last := c.State().PresetIndex

	// Sustained poor throughput: downgrades must be spaced by the cooldown.
	for i := 0; i < 300; i++ {
		at := now.Add(time.Duration(i) * 100 * time.Millisecond)
		c.Adapt(governor.ThroughputEstimate{AverageFPS: 15}, governor.BottleneckCounters{}, at)

		if idx := c.State().PresetIndex; idx != last {
			require.Equal(t, 1, idx-last, "No adapt call may skip a preset level")
			transitions = append(transitions, at)
			last = idx
		}
	}

	require.NotEmpty(t, transitions)
	for i := 1; i < len(transitions); i++ {
		assert.GreaterOrEqual(t, transitions[i].Sub(transitions[i-1]), cfg.Cooldown,
			"Discrete transitions within one cooldown window")
	}
}

func TestControllerUpgradeAboveExcellent(t *testing.T) {
	c, table := newController()

	now := time.Unix(2000, 0)
	c.Adapt(governor.ThroughputEstimate{AverageFPS: 90}, governor.BottleneckCounters{}, now)

	state := c.State()
	assert.Equal(t, table.IndexOf("high"), state.PresetIndex, "Expected a single upgrade step")
	assert.Equal(t, now, state.LastAdaptation)
}

func TestControllerGPUBoundBiasCutsShaderWork(t *testing.T) {
	c, _ := newController()

	now := time.Unix(1000, 0)
	before := c.State().ShaderComplexityLevel
	c.Adapt(governor.ThroughputEstimate{AverageFPS: 45},
		governor.BottleneckCounters{GPUBound: 10}, now)

	assert.Less(t, c.State().ShaderComplexityLevel, before,
		"GPU-bound pressure must bias shader complexity downward")
}

func TestControllerCPUBoundBiasCutsParticles(t *testing.T) {
	c, _ := newController()

	now := time.Unix(1000, 0)
	// averageFPS of 40 targets multiplier 1.0, so smoothing alone is neutral.
	before := c.State().ParticleCountMultiplier
	c.Adapt(governor.ThroughputEstimate{AverageFPS: 40},
		governor.BottleneckCounters{CPUBound: 10}, now)

	assert.Less(t, c.State().ParticleCountMultiplier, before,
		"CPU-bound pressure must bias particle count downward")
}

func TestControllerForceMinimum(t *testing.T) {
	c, table := newController()

	now := time.Unix(1000, 0)
	c.ForceMinimum(now)

	state := c.State()
	assert.Equal(t, table.Lowest(), state.PresetIndex)
	assert.Equal(t, governor.MinQualityLevel, state.QualityLevel)
	assert.Equal(t, governor.MinParticleMult, state.ParticleCountMultiplier)
	assert.Equal(t, governor.MinShaderLevel, state.ShaderComplexityLevel)
}

func TestControllerMultipliersDriftDuringCooldown(t *testing.T) {
	c, _ := newController()

	now := time.Unix(1000, 0)
	c.Adapt(governor.ThroughputEstimate{AverageFPS: 15}, governor.BottleneckCounters{}, now)
	first := c.State()

	// Within the cooldown the preset is pinned but the analog multipliers
	// keep moving toward their target.
	c.Adapt(governor.ThroughputEstimate{AverageFPS: 15}, governor.BottleneckCounters{}, now.Add(100*time.Millisecond))
	second := c.State()

	assert.Equal(t, first.PresetIndex, second.PresetIndex)
	assert.Less(t, second.QualityLevel, first.QualityLevel)
}
