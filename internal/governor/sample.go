package governor

import "time"

// Sample carries one frame's raw timing as reported by the renderer.
// GPUTimeMs and CPUTimeMs are optional breakdowns; values that are zero,
// negative or non-finite are treated as absent.
type Sample struct {
	FrameTimeMs float64
	Timestamp   time.Time
	GPUTimeMs   float64
	CPUTimeMs   float64
}

// HasBreakdown reports whether the sample carries usable GPU and CPU timings.
func (s Sample) HasBreakdown() bool {
	return isFinitePositive(s.GPUTimeMs) && isFinitePositive(s.CPUTimeMs)
}
