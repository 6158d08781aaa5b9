package governor

import "time"

// Quality multiplier envelopes. Outputs are always clamped into these ranges,
// even under adversarial input.
const (
	MinQualityLevel  = 0.1
	MaxQualityLevel  = 2.0
	MinParticleMult  = 0.1
	MaxParticleMult  = 2.0
	MinShaderLevel   = 0.1
	MaxShaderLevel   = 1.0
	initialPresetKey = "standard"
)

// QualityState is the controller's mutable state. The controller is the only
// writer; everyone else receives value copies and must treat them as a frozen
// snapshot for the duration of one frame.
type QualityState struct {
	QualityLevel            float64
	ParticleCountMultiplier float64
	ShaderComplexityLevel   float64
	PresetIndex             int
	LastAdaptation          time.Time
}

func clampFloat(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
