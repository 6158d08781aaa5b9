package governor

import (
	"sync"
	"time"

	"codeberg.org/mutker/framectl/internal/logger"
)

// RecoveryHandler watches for catastrophic degradation and forces a
// minimum-viable configuration when the FPS floor is breached for several
// consecutive calls. Normal adaptation is then suspended until a deferred
// one-shot task re-enables it.
type RecoveryHandler struct {
	floorFPS   float64
	sustained  int
	delay      time.Duration
	clock      Clock
	controller *Controller

	mu       sync.Mutex
	lowCalls int
	pending  Timer
	count    int
	closed   bool
}

func NewRecoveryHandler(cfg Config, clock Clock, controller *Controller) *RecoveryHandler {
	return &RecoveryHandler{
		floorFPS:   cfg.MinFPS,
		sustained:  cfg.SustainedCalls,
		delay:      cfg.ReenableDelay,
		clock:      clock,
		controller: controller,
	}
}

// CheckAndRecover returns true when recovery was triggered by this call.
// A single-frame hitch never triggers: the floor must hold for the configured
// number of consecutive calls. While a re-enable task is pending, further
// breaches neither re-trigger nor duplicate the task.
func (h *RecoveryHandler) CheckAndRecover(est ThroughputEstimate) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.pending != nil {
		return false
	}

	avg := est.AverageFPS
	if avg <= 0 {
		// Unknown throughput carries no evidence either way.
		return false
	}

	if avg >= h.floorFPS {
		h.lowCalls = 0
		return false
	}

	h.lowCalls++
	if h.lowCalls < h.sustained {
		return false
	}

	h.lowCalls = 0
	h.count++
	now := h.clock.Now()
	h.controller.ForceMinimum(now)
	h.controller.setEnabled(false)
	h.pending = h.clock.AfterFunc(h.delay, h.reenable)

	logger.Warn().
		Float64("average_fps", avg).
		Float64("floor_fps", h.floorFPS).
		Dur("reenable_delay", h.delay).
		Msg("Emergency recovery triggered, forcing minimum quality")

	return true
}

func (h *RecoveryHandler) reenable() {
	h.mu.Lock()
	if h.closed {
		h.pending = nil
		h.mu.Unlock()
		return
	}
	h.pending = nil
	h.mu.Unlock()

	h.controller.setEnabled(true)
	logger.Info().Msg("Automatic adaptation re-enabled after recovery delay")
}

// Recovering reports whether a re-enable task is currently pending.
func (h *RecoveryHandler) Recovering() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.pending != nil
}

// Recoveries returns the number of times recovery has been triggered.
func (h *RecoveryHandler) Recoveries() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.count
}

// Close cancels any pending re-enable task. Required on teardown so the
// deferred task never fires into a dismantled governor.
func (h *RecoveryHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if h.pending != nil {
		h.pending.Stop()
		h.pending = nil
	}
}
