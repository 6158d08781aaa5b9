package governor

// BottleneckCounters tallies per-window bottleneck verdicts. Counters are
// non-negative and only grow between resets; the reset cadence belongs to the
// caller, never to Classify itself.
type BottleneckCounters struct {
	GPUBound    int
	CPUBound    int
	MemoryBound int
}

// BottleneckClassifier tags frames as GPU-, CPU- or memory-bound from recent
// timing breakdowns. The rules are ratio heuristics, not a profiler.
type BottleneckClassifier struct {
	cfg      ClassifierConfig
	counters BottleneckCounters
}

func NewBottleneckClassifier(cfg ClassifierConfig) *BottleneckClassifier {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 10
	}
	if cfg.BoundRatio <= 1 {
		cfg.BoundRatio = 2.0
	}
	if cfg.MemoryShare <= 0 || cfg.MemoryShare >= 1 {
		cfg.MemoryShare = 0.6
	}

	return &BottleneckClassifier{cfg: cfg}
}

// Classify inspects the recent GPU and CPU timings and increments at most one
// counter. With fewer than MinSamples entries on either side it is a no-op:
// too little history yields "unknown", never a guess.
func (c *BottleneckClassifier) Classify(gpuTimes, cpuTimes []float64, frameBudgetMs float64) {
	if len(gpuTimes) < c.cfg.MinSamples || len(cpuTimes) < c.cfg.MinSamples {
		return
	}

	avgGPU := mean(gpuTimes)
	avgCPU := mean(cpuTimes)
	total := avgGPU + avgCPU
	if total <= 0 {
		return
	}

	switch {
	case avgGPU > avgCPU*c.cfg.BoundRatio:
		c.counters.GPUBound++
	case avgCPU > avgGPU*c.cfg.BoundRatio:
		c.counters.CPUBound++
	case total > frameBudgetMs &&
		avgGPU < total*c.cfg.MemoryShare &&
		avgCPU < total*c.cfg.MemoryShare:
		// Over budget with neither side dominating: best-effort proxy for
		// bandwidth or allocation pressure.
		c.counters.MemoryBound++
	}
}

// Counters returns the tallies accumulated since the last reset.
func (c *BottleneckClassifier) Counters() BottleneckCounters {
	return c.counters
}

// Reset zeroes the counters. Called by the owner on its window cadence.
func (c *BottleneckClassifier) Reset() {
	c.counters = BottleneckCounters{}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
