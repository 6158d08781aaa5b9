package governor

import (
	"math"
	"sync"
	"time"
)

// Controller is the quality adaptation state machine. Each discrete preset
// index is a state; the continuous multipliers ride on top of the discrete
// state as analog adjustment. There is no terminal state: the loop runs until
// teardown and only pauses while adaptation is disabled.
type Controller struct {
	cooldown  time.Duration
	smoothing float64
	bands     Thresholds
	biasCount int
	table     PresetTable

	mu      sync.RWMutex
	state   QualityState
	enabled bool
}

func NewController(cfg Config, table PresetTable) *Controller {
	start := table.IndexOf(initialPresetKey)
	if start < 0 {
		start = table.Len() / 2
	}

	return &Controller{
		cooldown:  cfg.Cooldown,
		smoothing: cfg.Smoothing,
		bands:     cfg.Thresholds,
		biasCount: cfg.BiasThreshold,
		table:     table,
		enabled:   true,
		state: QualityState{
			QualityLevel:            1.0,
			ParticleCountMultiplier: 1.0,
			ShaderComplexityLevel:   1.0,
			PresetIndex:             start,
		},
	}
}

// Adapt runs one control step. Invalid throughput input is dropped, not
// propagated; the controller clamps rather than raises for out-of-range
// values.
func (c *Controller) Adapt(est ThroughputEstimate, counters BottleneckCounters, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	avg := est.AverageFPS
	if avg <= 0 || math.IsNaN(avg) || math.IsInf(avg, 0) {
		return
	}

	// Continuous multipliers drift every call, cooldown or not. Smoothing
	// keeps a single low frame from visibly popping the particle field.
	target := c.targetMultiplier(avg)
	s := c.smoothing
	c.state.QualityLevel = clampFloat(c.state.QualityLevel*(1-s)+target*s, MinQualityLevel, MaxQualityLevel)
	c.state.ParticleCountMultiplier = clampFloat(c.state.ParticleCountMultiplier*(1-s)+target*s, MinParticleMult, MaxParticleMult)

	// Bottleneck bias is independent of the FPS-driven target. GPU-bound
	// frames are better served by cutting shader work than particle count;
	// CPU-bound frames the other way around.
	switch {
	case counters.GPUBound >= c.biasCount:
		c.state.ShaderComplexityLevel = clampFloat(c.state.ShaderComplexityLevel-defaultBiasStep, MinShaderLevel, MaxShaderLevel)
	case counters.CPUBound >= c.biasCount:
		c.state.ParticleCountMultiplier = clampFloat(c.state.ParticleCountMultiplier-defaultBiasStep, MinParticleMult, MaxParticleMult)
		c.state.ShaderComplexityLevel = clampFloat(c.state.ShaderComplexityLevel*(1-s)+MaxShaderLevel*s, MinShaderLevel, MaxShaderLevel)
	default:
		c.state.ShaderComplexityLevel = clampFloat(c.state.ShaderComplexityLevel*(1-s)+MaxShaderLevel*s, MinShaderLevel, MaxShaderLevel)
	}

	// Discrete preset transitions are serialized by the cooldown timestamp:
	// at most one level per call, at most one transition per cooldown window.
	if now.Sub(c.state.LastAdaptation) < c.cooldown {
		return
	}

	next := -1
	switch {
	case avg > c.bands.Excellent:
		next = c.table.Neighbor(c.state.PresetIndex, Upgrade)
	case avg < c.bands.Poor:
		next = c.table.Neighbor(c.state.PresetIndex, Downgrade)
	}
	if next >= 0 {
		c.state.PresetIndex = next
		c.state.LastAdaptation = now
	}
}

// targetMultiplier maps average FPS onto the quality target with linear
// interpolation between band anchors.
func (c *Controller) targetMultiplier(avgFPS float64) float64 {
	b := c.bands
	switch {
	case avgFPS >= b.Excellent:
		return 1.5
	case avgFPS >= b.Good:
		return lerp(1.0, 1.5, (avgFPS-b.Good)/(b.Excellent-b.Good))
	case avgFPS >= b.Fair:
		return lerp(0.7, 1.0, (avgFPS-b.Fair)/(b.Good-b.Fair))
	case avgFPS >= b.Poor:
		return lerp(0.4, 0.7, (avgFPS-b.Poor)/(b.Fair-b.Poor))
	default:
		return lerp(MinQualityLevel, 0.4, avgFPS/b.Poor)
	}
}

// State returns a copy of the current quality state.
func (c *Controller) State() QualityState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// Enabled reports whether automatic adaptation is active.
func (c *Controller) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.enabled
}

// ForceMinimum drops to the lowest-cost preset and clamps all multipliers to
// their documented minimums. Emergency action is exempt from the cooldown:
// staying in a catastrophic state costs more than a visible pop.
func (c *Controller) ForceMinimum(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.PresetIndex = c.table.Lowest()
	c.state.QualityLevel = MinQualityLevel
	c.state.ParticleCountMultiplier = MinParticleMult
	c.state.ShaderComplexityLevel = MinShaderLevel
	c.state.LastAdaptation = now
}

func (c *Controller) setEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func lerp(from, to, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	return from + (to-from)*t
}
