package governor_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/framectl/internal/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecoveryFixture() (*governor.RecoveryHandler, *governor.Controller, *fakeClock) {
	cfg := governor.DefaultConfig()
	table := governor.DefaultPresetTable()
	controller := governor.NewController(cfg, table)
	clock := newFakeClock()
	return governor.NewRecoveryHandler(cfg, clock, controller), controller, clock
}

func TestRecoveryRequiresSustainedDegradation(t *testing.T) {
	handler, controller, _ := newRecoveryFixture()

	low := governor.ThroughputEstimate{AverageFPS: 5}
	healthy := governor.ThroughputEstimate{AverageFPS: 60}

	// A single hitch, then recovery of throughput: no trigger.
	assert.False(t, handler.CheckAndRecover(low))
	assert.False(t, handler.CheckAndRecover(healthy))
	assert.False(t, handler.CheckAndRecover(low))
	assert.False(t, handler.CheckAndRecover(low))
	assert.True(t, controller.Enabled())

	// Third consecutive low call crosses the sustained threshold.
	assert.True(t, handler.CheckAndRecover(low))
}

func TestRecoveryForcesMinimumAndDisablesAdaptation(t *testing.T) {
	handler, controller, _ := newRecoveryFixture()
	table := governor.DefaultPresetTable()

	low := governor.ThroughputEstimate{AverageFPS: 5}
	for i := 0; i < 3; i++ {
		handler.CheckAndRecover(low)
	}

	state := controller.State()
	assert.Equal(t, table.Lowest(), state.PresetIndex)
	assert.Equal(t, governor.MinQualityLevel, state.QualityLevel)
	assert.False(t, controller.Enabled())
	assert.True(t, handler.Recovering())
	assert.Equal(t, 1, handler.Recoveries())
}

func TestRecoveryReenablesExactlyOnce(t *testing.T) {
	handler, controller, clock := newRecoveryFixture()

	low := governor.ThroughputEstimate{AverageFPS: 5}
	for i := 0; i < 3; i++ {
		handler.CheckAndRecover(low)
	}
	require.False(t, controller.Enabled())

	// Further breaches while the re-enable task is pending must not
	// duplicate or re-arm it.
	for i := 0; i < 10; i++ {
		assert.False(t, handler.CheckAndRecover(low))
	}

	clock.Advance(4 * time.Second)
	assert.False(t, controller.Enabled(), "Re-enable fires only after the full delay")

	clock.Advance(time.Second)
	assert.True(t, controller.Enabled())
	assert.False(t, handler.Recovering())
	assert.Equal(t, 1, handler.Recoveries())
}

func TestRecoveryCanTriggerAgainAfterReenable(t *testing.T) {
	handler, controller, clock := newRecoveryFixture()

	low := governor.ThroughputEstimate{AverageFPS: 5}
	for i := 0; i < 3; i++ {
		handler.CheckAndRecover(low)
	}
	clock.Advance(5 * time.Second)
	require.True(t, controller.Enabled())

	triggered := false
	for i := 0; i < 3; i++ {
		triggered = handler.CheckAndRecover(low)
	}
	assert.True(t, triggered)
	assert.Equal(t, 2, handler.Recoveries())
}

func TestRecoveryUnknownThroughputIgnored(t *testing.T) {
	handler, _, _ := newRecoveryFixture()

	unknown := governor.ThroughputEstimate{}
	for i := 0; i < 10; i++ {
		assert.False(t, handler.CheckAndRecover(unknown))
	}
}

func TestRecoveryCloseCancelsPendingTask(t *testing.T) {
	handler, controller, clock := newRecoveryFixture()

	low := governor.ThroughputEstimate{AverageFPS: 5}
	for i := 0; i < 3; i++ {
		handler.CheckAndRecover(low)
	}
	require.False(t, controller.Enabled())

	handler.Close()
	clock.Advance(10 * time.Second)
	assert.False(t, controller.Enabled(), "Cancelled task must not fire after teardown")
}
