// Package governor implements the adaptive performance-governance loop for
// the particle simulation: it watches per-frame timing, classifies the
// bottleneck, and adjusts quality to hold the frame-time budget.
package governor

import (
	"time"

	"codeberg.org/mutker/framectl/internal/errors"
	"codeberg.org/mutker/framectl/internal/logger"
)

// Governor wires the per-frame pipeline in its fixed order: tracker →
// classifier → recovery → controller → advisor. It is frame-synchronous and
// single-threaded; the only asynchronous piece is the recovery re-enable
// task, which never blocks the frame path.
type Governor struct {
	cfg        Config
	clock      Clock
	tracker    *FrameTimeTracker
	classifier *BottleneckClassifier
	table      PresetTable
	controller *Controller
	recovery   *RecoveryHandler
	advisor    Advisor

	gpuTimes    []float64
	cpuTimes    []float64
	windowStart time.Time
	closed      bool
}

// Option adjusts governor construction.
type Option func(*Governor)

// WithClock substitutes the wall clock, used by tests to drive the cooldown
// and the recovery timer deterministically.
func WithClock(clock Clock) Option {
	return func(g *Governor) {
		g.clock = clock
	}
}

func New(cfg Config, opts ...Option) (*Governor, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	table := DefaultPresetTable()
	if len(cfg.Presets) > 0 {
		var err error
		if table, err = NewPresetTable(cfg.Presets); err != nil {
			return nil, err
		}
	}

	g := &Governor{
		cfg:      cfg,
		clock:    NewClock(),
		tracker:  NewFrameTimeTracker(cfg.EMAAlpha),
		table:    table,
		gpuTimes: make([]float64, 0, cfg.HistorySize),
		cpuTimes: make([]float64, 0, cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.classifier = NewBottleneckClassifier(cfg.Classifier)
	g.controller = NewController(cfg, table)
	g.recovery = NewRecoveryHandler(cfg, g.clock, g.controller)

	logger.Debug().
		Float64("target_fps", cfg.TargetFPS).
		Float64("min_fps", cfg.MinFPS).
		Int("presets", table.Len()).
		Str("initial_preset", table.At(g.controller.State().PresetIndex).Name).
		Msg("Governor initialized")

	return g, nil
}

// Observe ingests one frame sample and returns the rendering hints for the
// next frame. It always produces well-formed hints, even under adversarial
// input: in the worst case the renderer sees the lowest-cost preset's hints
// until performance recovers.
func (g *Governor) Observe(sample Sample) RenderingHints {
	now := g.clock.Now()

	est := g.tracker.Update(sample.FrameTimeMs)

	if sample.HasBreakdown() {
		g.gpuTimes = appendBounded(g.gpuTimes, sample.GPUTimeMs, g.cfg.HistorySize)
		g.cpuTimes = appendBounded(g.cpuTimes, sample.CPUTimeMs, g.cfg.HistorySize)
	}

	// Counter reset cadence belongs here, not in the classifier.
	if g.windowStart.IsZero() {
		g.windowStart = now
	} else if now.Sub(g.windowStart) >= g.cfg.CounterWindow {
		g.classifier.Reset()
		g.windowStart = now
	}

	g.classifier.Classify(g.gpuTimes, g.cpuTimes, g.cfg.FrameBudgetMs())

	if !g.cfg.Monitor {
		g.recovery.CheckAndRecover(est)
		g.controller.Adapt(est, g.classifier.Counters(), now)
	}

	state := g.controller.State()

	return g.advisor.Derive(state, g.table.At(state.PresetIndex), est.AverageFPS)
}

// State returns a copy of the controller's quality state.
func (g *Governor) State() QualityState {
	return g.controller.State()
}

// Presets exposes the active preset table.
func (g *Governor) Presets() PresetTable {
	return g.table
}

// Close cancels the recovery timer. The governor must not be observed after
// Close.
func (g *Governor) Close() error {
	if g.closed {
		return errors.New().New(ErrClosed)
	}
	g.closed = true
	g.recovery.Close()

	return nil
}

func appendBounded(buf []float64, v float64, limit int) []float64 {
	buf = append(buf, v)
	if len(buf) > limit {
		buf = buf[1:]
	}

	return buf
}
