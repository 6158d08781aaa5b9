package governor

import "time"

// Snapshot is a read-only aggregation of the governor's current state for
// diagnostics and UI display. Building one never touches control-loop state,
// so it may be taken at arbitrary frequency.
type Snapshot struct {
	Timestamp               time.Time
	CurrentFPS              float64
	AverageFPS              float64
	QualityLevel            float64
	ParticleCountMultiplier float64
	ShaderComplexityLevel   float64
	PresetName              string
	PresetIndex             int
	Counters                BottleneckCounters
	AdaptationEnabled       bool
	Recovering              bool
	RecoveryCount           int
}

// Report assembles the current snapshot.
func (g *Governor) Report() Snapshot {
	est := g.tracker.Estimate()
	state := g.controller.State()

	return Snapshot{
		Timestamp:               g.clock.Now(),
		CurrentFPS:              est.CurrentFPS,
		AverageFPS:              est.AverageFPS,
		QualityLevel:            state.QualityLevel,
		ParticleCountMultiplier: state.ParticleCountMultiplier,
		ShaderComplexityLevel:   state.ShaderComplexityLevel,
		PresetName:              g.table.At(state.PresetIndex).Name,
		PresetIndex:             state.PresetIndex,
		Counters:                g.classifier.Counters(),
		AdaptationEnabled:       g.controller.Enabled(),
		Recovering:              g.recovery.Recovering(),
		RecoveryCount:           g.recovery.Recoveries(),
	}
}
