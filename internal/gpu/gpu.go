// Package gpu probes device utilization through NVML so frame-time samples
// can carry a GPU/CPU breakdown. The probe is optional; when no device is
// available callers fall back to samples without a breakdown.
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"codeberg.org/mutker/framectl/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

var (
	ErrUninitializedGPU = errors.New("GPU not initialized")
	ErrNVMLFailure      = errors.New("NVML operation failed")
)

// Utilization holds one snapshot of device busy fractions in [0, 1].
type Utilization struct {
	GPU    float64
	Memory float64
}

type GPU struct {
	device      nvml.Device
	initialized bool
	mu          sync.Mutex
}

func New() (*GPU, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("%w: %v", ErrNVMLFailure, nvml.ErrorString(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
			logger.Warn().Msgf("Failed to shutdown NVML: %v", nvml.ErrorString(ret))
		}
		return nil, fmt.Errorf("%w: %v", ErrNVMLFailure, nvml.ErrorString(ret))
	}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		logger.Info().Msgf("Detected GPU: %v", name)
	} else {
		logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return &GPU{device: device, initialized: true}, nil
}

// GetUtilization reads the current device and memory busy fractions.
func (g *GPU) GetUtilization() (Utilization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return Utilization{}, ErrUninitializedGPU
	}

	rates, ret := g.device.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return Utilization{}, fmt.Errorf("%w: %v", ErrNVMLFailure, nvml.ErrorString(ret))
	}

	return Utilization{
		GPU:    float64(rates.Gpu) / 100.0,
		Memory: float64(rates.Memory) / 100.0,
	}, nil
}

// SplitFrameTime apportions a frame time between GPU and CPU work using the
// device busy fraction. A fully busy device attributes the whole frame to the
// GPU; an idle one attributes it to the CPU.
func (g *GPU) SplitFrameTime(frameTimeMs float64) (gpuMs, cpuMs float64, err error) {
	util, err := g.GetUtilization()
	if err != nil {
		return 0, 0, err
	}

	gpuMs = frameTimeMs * util.GPU
	cpuMs = frameTimeMs - gpuMs

	return gpuMs, cpuMs, nil
}

func (g *GPU) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return nil
	}
	g.initialized = false

	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("%w: %v", ErrNVMLFailure, nvml.ErrorString(ret))
	}

	return nil
}
