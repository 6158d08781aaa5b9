package governor_test

import (
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/framectl/internal/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGovernor(t *testing.T) (*governor.Governor, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	g, err := governor.New(governor.DefaultConfig(), governor.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	return g, clock
}

func TestGovernorRejectsInvalidConfig(t *testing.T) {
	cfg := governor.DefaultConfig()
	cfg.TargetFPS = -1

	_, err := governor.New(cfg)
	require.Error(t, err)
}

func TestGovernorSteadySixtyFPS(t *testing.T) {
	g, clock := newGovernor(t)
	table := g.Presets()
	start := g.State().PresetIndex

	for i := 0; i < 120; i++ {
		g.Observe(governor.Sample{FrameTimeMs: 8.33})
		clock.Advance(8330 * time.Microsecond)
	}

	report := g.Report()
	assert.InEpsilon(t, 120.0, report.AverageFPS, 0.02, "Average FPS stabilizes near 120")

	// Throughput above the excellent band: the preset may upgrade, but at
	// most once within the cooldown window covered by 120 fast frames.
	idx := g.State().PresetIndex
	assert.GreaterOrEqual(t, idx, table.IndexOf("high"))
	assert.LessOrEqual(t, start-idx, 1)
}

func TestGovernorGPUBoundSpikeCutsShaderWork(t *testing.T) {
	g, clock := newGovernor(t)

	for i := 0; i < 20; i++ {
		g.Observe(governor.Sample{FrameTimeMs: 16, GPUTimeMs: 9, CPUTimeMs: 3})
		clock.Advance(16 * time.Millisecond)
	}

	report := g.Report()
	assert.GreaterOrEqual(t, report.Counters.GPUBound, 10)
	assert.Less(t, report.ShaderComplexityLevel, 1.0,
		"Sustained GPU-bound verdicts must bias shader complexity down")
}

func TestGovernorEmergencyScenario(t *testing.T) {
	g, clock := newGovernor(t)
	table := g.Presets()

	// Two seconds at 5 FPS.
	for i := 0; i < 10; i++ {
		g.Observe(governor.Sample{FrameTimeMs: 200})
		clock.Advance(200 * time.Millisecond)
	}

	report := g.Report()
	assert.Equal(t, table.At(table.Lowest()).Name, report.PresetName)
	assert.False(t, report.AdaptationEnabled)
	assert.True(t, report.Recovering)
	assert.Equal(t, 1, report.RecoveryCount)

	clock.Advance(5 * time.Second)
	report = g.Report()
	assert.True(t, report.AdaptationEnabled, "Adaptation re-enables after the configured delay")
	assert.Equal(t, 1, report.RecoveryCount)
}

func TestGovernorInvalidSamplesDoNotAffectEstimate(t *testing.T) {
	clean, cleanClock := newGovernor(t)
	noisy, noisyClock := newGovernor(t)

	junk := []float64{-3, 0, math.NaN(), math.Inf(1)}
	for i := 0; i < 40; i++ {
		clean.Observe(governor.Sample{FrameTimeMs: 16.67})
		cleanClock.Advance(16670 * time.Microsecond)

		noisy.Observe(governor.Sample{FrameTimeMs: 16.67})
		noisy.Observe(governor.Sample{FrameTimeMs: junk[i%len(junk)]})
		noisyClock.Advance(16670 * time.Microsecond)
	}

	assert.Equal(t, clean.Report().AverageFPS, noisy.Report().AverageFPS,
		"Invalid frame times must not perturb the estimate")
}

func TestGovernorCounterWindowReset(t *testing.T) {
	g, clock := newGovernor(t)

	// 6.5 seconds of GPU-bound frames: one reset cadence passes.
	frames := 65
	for i := 0; i < frames; i++ {
		g.Observe(governor.Sample{FrameTimeMs: 100, GPUTimeMs: 80, CPUTimeMs: 10})
		clock.Advance(100 * time.Millisecond)
	}

	got := g.Report().Counters.GPUBound
	assert.Greater(t, got, 0)
	assert.Less(t, got, frames-10, "Counters must have been reset on the window cadence")
}

func TestGovernorHintsAlwaysWellFormed(t *testing.T) {
	g, clock := newGovernor(t)

	inputs := []governor.Sample{
		{FrameTimeMs: math.NaN()},
		{FrameTimeMs: -1},
		{FrameTimeMs: 1e9},
		{FrameTimeMs: 0.0001},
		{FrameTimeMs: 16.67, GPUTimeMs: math.Inf(1), CPUTimeMs: -4},
	}
	for i := 0; i < 100; i++ {
		hints := g.Observe(inputs[i%len(inputs)])
		clock.Advance(16 * time.Millisecond)

		require.False(t, math.IsNaN(hints.DrawFraction))
		require.GreaterOrEqual(t, hints.DrawFraction, 0.0)
		require.LessOrEqual(t, hints.DrawFraction, 1.0)
		require.GreaterOrEqual(t, hints.UpdateSkipFrames, 1)
		require.GreaterOrEqual(t, hints.BatchSize, 32)
	}
}

func TestGovernorCloseIsTerminal(t *testing.T) {
	clock := newFakeClock()
	g, err := governor.New(governor.DefaultConfig(), governor.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, g.Close())
	require.Error(t, g.Close())
}
