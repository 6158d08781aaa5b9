package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/framectl/internal/config"
	"codeberg.org/mutker/framectl/internal/errors"
	"codeberg.org/mutker/framectl/internal/exporter"
	"codeberg.org/mutker/framectl/internal/governor"
	"codeberg.org/mutker/framectl/internal/gpu"
	"codeberg.org/mutker/framectl/internal/logger"
	"codeberg.org/mutker/framectl/internal/pid"
	"codeberg.org/mutker/framectl/internal/telemetry"
)

const (
	telemetryInterval = time.Second

	// Synthetic workload model. Costs are per frame at the reference grid
	// with all multipliers at 1.0.
	referenceCells = 256.0 * 256.0
	baseGPUCostMs  = 9.0
	baseCPUCostMs  = 4.5
	overheadMs     = 1.0
	jitterMs       = 0.8
	loadPeriod     = 45 * time.Second
	loadSwing      = 0.45
)

var (
	cfg       *config.Config
	gpuDevice *gpu.GPU
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel == string(config.LogLevelDebug),
		cfg.LogLevel == string(config.LogLevelInfo), logger.IsService())
	logger.SetLogLevel(logLevel(cfg.LogLevel))
	logger.Debug().Msg("Config loaded")

	if cfg.NVML {
		gpuDevice, err = gpu.New()
		if err != nil {
			logger.Warn().Err(err).Msg("NVML unavailable, frame timing stays synthetic")
			gpuDevice = nil
		}
	}
}

func main() {
	if err := pid.Write(); err != nil {
		logger.FatalWithCode(errors.New().Wrap(errors.ErrInitApp, err)).
			Msg("Failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	if gpuDevice != nil {
		defer func() {
			if err := gpuDevice.Shutdown(); err != nil {
				logger.Error().Err(err).Msg("Failed to shut down NVML")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	gov, err := governor.New(governorConfig(cfg))
	if err != nil {
		logger.FatalWithCode(errors.New().Wrap(errors.ErrInitApp, err)).
			Msg("Failed to initialize governor")
	}
	defer gov.Close()

	collector, err := telemetry.NewService(telemetry.Config{
		DBPath:       cfg.TelemetryDB,
		BatchSize:    telemetry.DefaultConfig().BatchSize,
		BatchTimeout: telemetry.DefaultConfig().BatchTimeout,
		Enabled:      cfg.Telemetry,
	})
	if err != nil {
		logger.FatalWithCode(errors.New().Wrap(errors.ErrInitTelemetry, err)).
			Msg("Failed to initialize telemetry")
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close telemetry")
		}
	}()

	exp := exporter.New(exporter.Config{Enabled: cfg.Exporter, ListenAddr: cfg.ListenAddr})
	if err := exp.Start(); err != nil {
		logger.FatalWithCode(errors.New().Wrap(errors.ErrExporterInit, err)).
			Msg("Failed to start metrics exporter")
	}
	defer func() {
		if err := exp.Stop(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics exporter")
		}
	}()

	if err := loop(ctx, gov, collector, exp); err != nil {
		logger.ErrorWithCode(errors.New().Wrap(errors.ErrMainLoop, err)).
			Msg("Error in main loop")
	}
	logger.Info().Msg("Exiting...")
}

func loop(ctx context.Context, gov *governor.Governor, collector telemetry.Collector, exp exporter.Exporter) error {
	interval := time.Duration(cfg.Interval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging frame statistics...")
	}

	source := newFrameSource(gov.Presets())
	lastRecord := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			state := gov.State()
			sample := source.next(now, state)
			hints := gov.Observe(sample)
			source.apply(hints)

			snapshot := gov.Report()
			exp.Observe(&snapshot)

			if now.Sub(lastRecord) >= telemetryInterval {
				lastRecord = now
				if err := collector.Record(ctx, &snapshot); err != nil {
					logger.Error().Err(err).Msg("Failed to record telemetry")
				}
			}

			logSnapshot(snapshot, hints)
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func governorConfig(c *config.Config) governor.Config {
	gc := governor.DefaultConfig()
	gc.TargetFPS = c.TargetFPS
	gc.MinFPS = c.MinFPS
	gc.Cooldown = time.Duration(c.CooldownMs) * time.Millisecond
	gc.Smoothing = c.Smoothing
	gc.EMAAlpha = c.EMAAlpha
	gc.CounterWindow = time.Duration(c.Classifier.WindowMs) * time.Millisecond
	gc.SustainedCalls = c.Recovery.SustainedCalls
	gc.ReenableDelay = time.Duration(c.Recovery.ReenableMs) * time.Millisecond
	gc.BiasThreshold = c.Classifier.BiasThreshold
	gc.Monitor = c.Monitor
	gc.Thresholds = governor.Thresholds{
		Excellent: c.Thresholds.Excellent,
		Good:      c.Thresholds.Good,
		Fair:      c.Thresholds.Fair,
		Poor:      c.Thresholds.Poor,
	}
	gc.Classifier = governor.ClassifierConfig{
		MinSamples:  c.Classifier.MinSamples,
		BoundRatio:  c.Classifier.BoundRatio,
		MemoryShare: c.Classifier.MemoryShare,
	}
	for _, p := range c.Presets {
		gc.Presets = append(gc.Presets, governor.Preset{
			Name:             p.Name,
			GridWidth:        p.GridWidth,
			GridHeight:       p.GridHeight,
			ShaderComplexity: p.ShaderComplexity,
			VisualEffects:    p.VisualEffects,
			UpdateFrequency:  p.UpdateFrequency,
		})
	}

	return gc
}

// frameSource models the simulation's per-frame cost so the control loop has
// something real to push against. Cost scales with the active preset and the
// continuous quality multipliers, with a slow external load swing on top.
type frameSource struct {
	table      governor.PresetTable
	rng        *rand.Rand
	start      time.Time
	skipAccum  int
	skipFrames int
}

func newFrameSource(table governor.PresetTable) *frameSource {
	return &frameSource{
		table:      table,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		skipFrames: 1,
	}
}

func (s *frameSource) apply(hints governor.RenderingHints) {
	if hints.UpdateSkipFrames > 0 {
		s.skipFrames = hints.UpdateSkipFrames
	}
}

func (s *frameSource) next(now time.Time, state governor.QualityState) governor.Sample {
	if s.start.IsZero() {
		s.start = now
	}

	preset := s.table.At(state.PresetIndex)
	cells := float64(preset.GridWidth) * float64(preset.GridHeight)
	scale := cells / referenceCells

	gpuMs := baseGPUCostMs * scale * preset.ShaderComplexity * state.ShaderComplexityLevel * state.QualityLevel
	cpuMs := baseCPUCostMs * scale * state.ParticleCountMultiplier

	// Simulation updates are amortized over skipped frames
	s.skipAccum++
	if s.skipAccum >= s.skipFrames {
		s.skipAccum = 0
	} else {
		cpuMs *= 0.3
	}

	load := 1.0 + loadSwing*math.Sin(2*math.Pi*now.Sub(s.start).Seconds()/loadPeriod.Seconds())
	gpuMs *= load
	cpuMs *= load

	frameMs := math.Max(gpuMs, cpuMs) + overheadMs + s.rng.Float64()*jitterMs

	if gpuDevice != nil {
		if g, c, err := gpuDevice.SplitFrameTime(frameMs); err == nil {
			gpuMs, cpuMs = g, c
		}
	}

	return governor.Sample{
		FrameTimeMs: frameMs,
		Timestamp:   now,
		GPUTimeMs:   gpuMs,
		CPUTimeMs:   cpuMs,
	}
}

func logSnapshot(s governor.Snapshot, hints governor.RenderingHints) {
	if cfg.LogLevel == string(config.LogLevelDebug) {
		logger.Debug().
			Float64("current_fps", s.CurrentFPS).
			Float64("average_fps", s.AverageFPS).
			Float64("quality_level", s.QualityLevel).
			Float64("particle_multiplier", s.ParticleCountMultiplier).
			Float64("shader_level", s.ShaderComplexityLevel).
			Str("preset", s.PresetName).
			Int("preset_index", s.PresetIndex).
			Int("gpu_bound", s.Counters.GPUBound).
			Int("cpu_bound", s.Counters.CPUBound).
			Int("memory_bound", s.Counters.MemoryBound).
			Bool("adaptation_enabled", s.AdaptationEnabled).
			Bool("recovering", s.Recovering).
			Int("recovery_count", s.RecoveryCount).
			Float64("lod_reduction", hints.LODReductionFactor).
			Int("skip_frames", hints.UpdateSkipFrames).
			Bool("monitor", cfg.Monitor).
			Msg("")
	} else if cfg.LogLevel == string(config.LogLevelInfo) || cfg.Monitor {
		logger.Info().
			Float64("fps", s.AverageFPS).
			Float64("quality", s.QualityLevel).
			Str("preset", s.PresetName).
			Bool("recovering", s.Recovering).
			Msg("")
	}
}

func logLevel(level string) logger.LogLevel {
	switch config.LogLevel(level) {
	case config.LogLevelDebug:
		return logger.DebugLevel
	case config.LogLevelInfo:
		return logger.InfoLevel
	case config.LogLevelError:
		return logger.ErrorLevel
	default:
		return logger.WarnLevel
	}
}
