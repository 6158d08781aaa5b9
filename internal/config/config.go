package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/framectl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultIntervalMs    = 16
	defaultTargetFPS     = 60.0
	defaultMinFPS        = 10.0
	defaultCooldownMs    = 2000
	defaultSmoothing     = 0.05
	defaultEMAAlpha      = 0.1
	defaultListenAddr    = ":9137"
	defaultTelemetryDB   = "/var/lib/framectl/telemetry.db"
	defaultExcellentFPS  = 50.0
	defaultGoodFPS       = 40.0
	defaultFairFPS       = 30.0
	defaultPoorFPS       = 20.0
	defaultMinSamples    = 10
	defaultBoundRatio    = 2.0
	defaultMemoryShare   = 0.6
	defaultBiasThreshold = 10
	defaultWindowMs      = 5000
	defaultSustainedLow  = 3
	defaultReenableMs    = 5000
)

// Config holds the daemon and governor settings. All values are immutable
// after Load; the governor never writes back into its configuration.
type Config struct {
	Interval    int     `mapstructure:"interval"`
	TargetFPS   float64 `mapstructure:"target_fps"`
	MinFPS      float64 `mapstructure:"min_fps"`
	CooldownMs  int     `mapstructure:"cooldown_ms"`
	Smoothing   float64 `mapstructure:"smoothing"`
	EMAAlpha    float64 `mapstructure:"ema_alpha"`
	Monitor     bool    `mapstructure:"monitor"`
	LogLevel    string  `mapstructure:"log_level"`
	Telemetry   bool    `mapstructure:"telemetry"`
	TelemetryDB string  `mapstructure:"database"`
	Exporter    bool    `mapstructure:"exporter"`
	ListenAddr  string  `mapstructure:"listen"`
	NVML        bool    `mapstructure:"nvml"`

	Thresholds ThresholdConfig  `mapstructure:"thresholds"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Recovery   RecoveryConfig   `mapstructure:"recovery"`
	Presets    []PresetConfig   `mapstructure:"preset"`
}

// ThresholdConfig holds the FPS bands driving the continuous quality target
// and the discrete preset transitions.
type ThresholdConfig struct {
	Excellent float64 `mapstructure:"excellent"`
	Good      float64 `mapstructure:"good"`
	Fair      float64 `mapstructure:"fair"`
	Poor      float64 `mapstructure:"poor"`
}

// ClassifierConfig exposes the bottleneck heuristics as configuration rather
// than hardcoded constants.
type ClassifierConfig struct {
	MinSamples    int     `mapstructure:"min_samples"`
	BoundRatio    float64 `mapstructure:"bound_ratio"`
	MemoryShare   float64 `mapstructure:"memory_share"`
	BiasThreshold int     `mapstructure:"bias_threshold"`
	WindowMs      int     `mapstructure:"window_ms"`
}

// RecoveryConfig tunes the emergency recovery handler.
type RecoveryConfig struct {
	SustainedCalls int `mapstructure:"sustained_calls"`
	ReenableMs     int `mapstructure:"reenable_ms"`
}

// PresetConfig describes one entry of the quality preset catalog when the
// built-in table is overridden from the config file. Entries must be listed
// from highest resource cost to lowest.
type PresetConfig struct {
	Name             string  `mapstructure:"name"`
	GridWidth        int     `mapstructure:"grid_width"`
	GridHeight       int     `mapstructure:"grid_height"`
	ShaderComplexity float64 `mapstructure:"shader_complexity"`
	VisualEffects    float64 `mapstructure:"visual_effects"`
	UpdateFrequency  int     `mapstructure:"update_frequency"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("framectl", pflag.ContinueOnError)
	fs.Int("interval", defaultIntervalMs, "Frame interval in milliseconds for the built-in frame source")
	fs.Float64("target-fps", defaultTargetFPS, "Target frames per second")
	fs.Float64("min-fps", defaultMinFPS, "Hard FPS floor triggering emergency recovery")
	fs.Int("cooldown-ms", defaultCooldownMs, "Minimum time between preset transitions")
	fs.Bool("monitor", false, "Only observe and log, do not adapt quality")
	fs.String("log-level", "", "Log level (debug, info, warning, error)")
	fs.Bool("telemetry", false, "Enable telemetry collection")
	fs.String("database", "", "Path to telemetry database")
	fs.Bool("exporter", false, "Enable the Prometheus exporter")
	fs.String("listen", defaultListenAddr, "Exporter listen address")
	fs.Bool("nvml", false, "Use NVML utilization sampling to estimate GPU frame time")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("framectl")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc")
	v.AddConfigPath(".")
	if path := os.Getenv("FRAMECTL_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("FRAMECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Command line flags override file and environment values
	fs.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", defaultIntervalMs)
	v.SetDefault("target_fps", defaultTargetFPS)
	v.SetDefault("min_fps", defaultMinFPS)
	v.SetDefault("cooldown_ms", defaultCooldownMs)
	v.SetDefault("smoothing", defaultSmoothing)
	v.SetDefault("ema_alpha", defaultEMAAlpha)
	v.SetDefault("monitor", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", defaultTelemetryDB)
	v.SetDefault("exporter", false)
	v.SetDefault("listen", defaultListenAddr)
	v.SetDefault("nvml", false)
	v.SetDefault("thresholds.excellent", defaultExcellentFPS)
	v.SetDefault("thresholds.good", defaultGoodFPS)
	v.SetDefault("thresholds.fair", defaultFairFPS)
	v.SetDefault("thresholds.poor", defaultPoorFPS)
	v.SetDefault("classifier.min_samples", defaultMinSamples)
	v.SetDefault("classifier.bound_ratio", defaultBoundRatio)
	v.SetDefault("classifier.memory_share", defaultMemoryShare)
	v.SetDefault("classifier.bias_threshold", defaultBiasThreshold)
	v.SetDefault("classifier.window_ms", defaultWindowMs)
	v.SetDefault("recovery.sustained_calls", defaultSustainedLow)
	v.SetDefault("recovery.reenable_ms", defaultReenableMs)
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.TargetFPS <= 0 || c.MinFPS <= 0 || c.MinFPS >= c.TargetFPS {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "min_fps must be positive and below target_fps")
	}
	if c.CooldownMs < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "cooldown_ms must not be negative")
	}
	if c.Smoothing <= 0 || c.Smoothing >= 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "smoothing must be in (0, 1)")
	}
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "ema_alpha must be in (0, 1]")
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Telemetry && c.TelemetryDB == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "telemetry enabled without a database path")
	}
	if t := c.Thresholds; !(t.Poor < t.Fair && t.Fair < t.Good && t.Good < t.Excellent) {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "thresholds must be strictly increasing poor < fair < good < excellent")
	}

	return nil
}
