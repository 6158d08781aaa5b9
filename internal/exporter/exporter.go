// Package exporter publishes governor state as Prometheus metrics over HTTP.
package exporter

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/framectl/internal/errors"
	"codeberg.org/mutker/framectl/internal/governor"
	"codeberg.org/mutker/framectl/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace       = "framectl"
	metricsPath     = "/metrics"
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
)

// Exporter mirrors governor snapshots into a Prometheus registry. A disabled
// exporter accepts snapshots and serves nothing.
type Exporter interface {
	Observe(snapshot *governor.Snapshot)
	Start() error
	Stop(ctx context.Context) error
}

type Config struct {
	Enabled    bool
	ListenAddr string
}

type exporter struct {
	cfg      Config
	registry *prometheus.Registry
	server   *http.Server

	currentFPS        prometheus.Gauge
	averageFPS        prometheus.Gauge
	qualityLevel      prometheus.Gauge
	particleMult      prometheus.Gauge
	shaderLevel       prometheus.Gauge
	presetIndex       prometheus.Gauge
	adaptationEnabled prometheus.Gauge
	recovering        prometheus.Gauge
	bottleneckTallies *prometheus.GaugeVec
	recoveries        prometheus.Counter

	lastRecoveryCount int
}

type noopExporter struct{}

func New(cfg Config) Exporter {
	if !cfg.Enabled {
		logger.Debug().Msg("Metrics exporter disabled")
		return &noopExporter{}
	}

	registry := prometheus.NewRegistry()

	e := &exporter{
		cfg:      cfg,
		registry: registry,
		currentFPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_fps",
			Help:      "Instantaneous frame rate derived from the last frame time.",
		}),
		averageFPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "average_fps",
			Help:      "Exponentially smoothed frame rate.",
		}),
		qualityLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_level",
			Help:      "Continuous quality multiplier.",
		}),
		particleMult: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "particle_multiplier",
			Help:      "Particle count multiplier applied to the active preset.",
		}),
		shaderLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shader_level",
			Help:      "Shader complexity level.",
		}),
		presetIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preset_index",
			Help:      "Index of the active quality preset, 0 is highest cost.",
		}),
		adaptationEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adaptation_enabled",
			Help:      "Whether automatic adaptation is currently enabled.",
		}),
		recovering: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recovering",
			Help:      "Whether an emergency recovery is in progress.",
		}),
		bottleneckTallies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bottleneck_tally",
			Help:      "Bottleneck classifications in the current counter window.",
		}, []string{"kind"}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Emergency recoveries since start.",
		}),
	}

	registry.MustRegister(
		e.currentFPS,
		e.averageFPS,
		e.qualityLevel,
		e.particleMult,
		e.shaderLevel,
		e.presetIndex,
		e.adaptationEnabled,
		e.recovering,
		e.bottleneckTallies,
		e.recoveries,
	)

	return e
}

func (e *exporter) Observe(snapshot *governor.Snapshot) {
	if snapshot == nil {
		return
	}

	e.currentFPS.Set(snapshot.CurrentFPS)
	e.averageFPS.Set(snapshot.AverageFPS)
	e.qualityLevel.Set(snapshot.QualityLevel)
	e.particleMult.Set(snapshot.ParticleCountMultiplier)
	e.shaderLevel.Set(snapshot.ShaderComplexityLevel)
	e.presetIndex.Set(float64(snapshot.PresetIndex))
	e.adaptationEnabled.Set(boolToFloat(snapshot.AdaptationEnabled))
	e.recovering.Set(boolToFloat(snapshot.Recovering))
	e.bottleneckTallies.WithLabelValues("gpu").Set(float64(snapshot.Counters.GPUBound))
	e.bottleneckTallies.WithLabelValues("cpu").Set(float64(snapshot.Counters.CPUBound))
	e.bottleneckTallies.WithLabelValues("memory").Set(float64(snapshot.Counters.MemoryBound))

	if snapshot.RecoveryCount > e.lastRecoveryCount {
		e.recoveries.Add(float64(snapshot.RecoveryCount - e.lastRecoveryCount))
		e.lastRecoveryCount = snapshot.RecoveryCount
	}
}

func (e *exporter) Start() error {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	e.server = &http.Server{
		Addr:        e.cfg.ListenAddr,
		Handler:     mux,
		ReadTimeout: readTimeout,
	}

	go func() {
		logger.Info().Str("addr", e.cfg.ListenAddr).Msg("Metrics exporter listening")
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithCode(errors.New().Wrap(errors.ErrExporterInit, err)).
				Msg("Metrics exporter stopped unexpectedly")
		}
	}()

	return nil
}

func (e *exporter) Stop(ctx context.Context) error {
	if e.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := e.server.Shutdown(shutdownCtx); err != nil {
		return errors.New().Wrap(errors.ErrExporterShutdown, err)
	}

	logger.Debug().Msg("Metrics exporter stopped")

	return nil
}

func (*noopExporter) Observe(_ *governor.Snapshot) {}

func (*noopExporter) Start() error { return nil }

func (*noopExporter) Stop(_ context.Context) error { return nil }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
