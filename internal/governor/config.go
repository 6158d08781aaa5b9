package governor

import (
	"time"

	"codeberg.org/mutker/framectl/internal/errors"
)

const (
	defaultTargetFPS  = 60.0
	defaultMinFPS     = 10.0
	defaultCooldown   = 2 * time.Second
	defaultSmoothing  = 0.05
	defaultEMAAlpha   = 0.1
	defaultHistory    = 60
	defaultWindow     = 5 * time.Second
	defaultSustained  = 3
	defaultReenable   = 5 * time.Second
	defaultBiasCount  = 10
	defaultBiasStep   = 0.05
	millisPerSecond   = 1000.0
)

// Thresholds holds the FPS bands the controller maps to quality targets.
// Bands must be strictly increasing: Poor < Fair < Good < Excellent.
type Thresholds struct {
	Excellent float64
	Good      float64
	Fair      float64
	Poor      float64
}

// ClassifierConfig exposes the bottleneck heuristics as configuration.
// The memory-bound rule is a best-effort proxy for bandwidth pressure, not a
// profiler verdict.
type ClassifierConfig struct {
	MinSamples  int
	BoundRatio  float64
	MemoryShare float64
}

// Config holds all governor tuning. Set once at initialization; the governor
// never mutates it.
type Config struct {
	TargetFPS      float64
	MinFPS         float64
	Cooldown       time.Duration
	Smoothing      float64
	EMAAlpha       float64
	HistorySize    int
	CounterWindow  time.Duration
	SustainedCalls int
	ReenableDelay  time.Duration
	BiasThreshold  int
	Monitor        bool
	Thresholds     Thresholds
	Classifier     ClassifierConfig
	Presets        []Preset
}

// DefaultConfig returns the built-in tuning for a 60 FPS budget.
func DefaultConfig() Config {
	return Config{
		TargetFPS:      defaultTargetFPS,
		MinFPS:         defaultMinFPS,
		Cooldown:       defaultCooldown,
		Smoothing:      defaultSmoothing,
		EMAAlpha:       defaultEMAAlpha,
		HistorySize:    defaultHistory,
		CounterWindow:  defaultWindow,
		SustainedCalls: defaultSustained,
		ReenableDelay:  defaultReenable,
		BiasThreshold:  defaultBiasCount,
		Thresholds: Thresholds{
			Excellent: 50,
			Good:      40,
			Fair:      30,
			Poor:      20,
		},
		Classifier: ClassifierConfig{
			MinSamples:  10,
			BoundRatio:  2.0,
			MemoryShare: 0.6,
		},
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.TargetFPS <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "target FPS must be positive")
	}
	if c.MinFPS <= 0 || c.MinFPS >= c.TargetFPS {
		return errFactory.WithData(ErrInvalidConfig, "minimum FPS must be positive and below target")
	}
	if c.Cooldown < 0 {
		return errFactory.WithData(ErrInvalidConfig, "cooldown must not be negative")
	}
	if c.Smoothing <= 0 || c.Smoothing >= 1 {
		return errFactory.WithData(ErrInvalidConfig, "smoothing must be in (0, 1)")
	}
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		return errFactory.WithData(ErrInvalidConfig, "EMA alpha must be in (0, 1]")
	}
	if c.HistorySize <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "history size must be positive")
	}
	if c.SustainedCalls <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "sustained call count must be positive")
	}
	if c.ReenableDelay <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "re-enable delay must be positive")
	}
	t := c.Thresholds
	if !(t.Poor < t.Fair && t.Fair < t.Good && t.Good < t.Excellent) {
		return errFactory.WithData(ErrInvalidConfig, "thresholds must satisfy poor < fair < good < excellent")
	}
	if c.Classifier.MinSamples <= 0 || c.Classifier.BoundRatio <= 1 {
		return errFactory.WithData(ErrInvalidConfig, "classifier needs a positive sample floor and a ratio above 1")
	}
	if c.Classifier.MemoryShare <= 0 || c.Classifier.MemoryShare >= 1 {
		return errFactory.WithData(ErrInvalidConfig, "classifier memory share must be in (0, 1)")
	}

	return nil
}

// FrameBudgetMs returns the per-frame time budget implied by the target FPS.
func (c Config) FrameBudgetMs() float64 {
	return millisPerSecond / c.TargetFPS
}
