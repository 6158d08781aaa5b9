package governor

import "math"

// ThroughputEstimate is the tracker's per-frame output. AverageFPS is 0
// until at least one valid sample has been observed.
type ThroughputEstimate struct {
	CurrentFPS float64
	AverageFPS float64
}

// FrameTimeTracker maintains an exponentially smoothed frame-time estimate.
// The EMA form keeps O(1) memory and damps single-frame spikes while staying
// responsive within roughly 1/alpha frames.
type FrameTimeTracker struct {
	alpha       float64
	smoothedMs  float64
	lastFrameMs float64
	seeded      bool
}

func NewFrameTimeTracker(alpha float64) *FrameTimeTracker {
	if alpha <= 0 || alpha > 1 {
		alpha = defaultEMAAlpha
	}

	return &FrameTimeTracker{alpha: alpha}
}

// Update ingests one frame duration in milliseconds and returns the updated
// estimate. Non-positive or non-finite durations are clock glitches: they are
// dropped and the previous estimate is returned unchanged.
func (t *FrameTimeTracker) Update(frameTimeMs float64) ThroughputEstimate {
	if !isFinitePositive(frameTimeMs) {
		return t.Estimate()
	}

	if !t.seeded {
		t.smoothedMs = frameTimeMs
		t.seeded = true
	} else {
		t.smoothedMs = t.smoothedMs*(1-t.alpha) + frameTimeMs*t.alpha
	}
	t.lastFrameMs = frameTimeMs

	return t.Estimate()
}

// Estimate returns the current estimate without ingesting a sample.
func (t *FrameTimeTracker) Estimate() ThroughputEstimate {
	if !t.seeded {
		return ThroughputEstimate{}
	}

	return ThroughputEstimate{
		CurrentFPS: millisPerSecond / t.lastFrameMs,
		AverageFPS: millisPerSecond / t.smoothedMs,
	}
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1) && !math.IsNaN(v)
}
