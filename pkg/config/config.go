// Package config provides configuration loading and validation for rtalign.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

// Sentinel validation errors.
var (
	ErrInvalidBufferSize  = errors.New("normalizer buffer size must be positive")
	ErrInvalidTargetStdev = errors.New("target standard deviation must be positive")
	ErrInvalidGap         = errors.New("invalid tracker gap tolerance")
	ErrInvalidWorkers     = errors.New("replay workers must not be negative")
	ErrInvalidChunkSize   = errors.New("replay chunk size must be positive")
	ErrInvalidSampleRatio = errors.New("trace sample ratio must be within [0, 1]")
	ErrInvalidLogLevel    = errors.New("unknown log level")
)

// EnvPrefix prefixes every environment override, e.g. RTALIGN_REPLAY_WORKERS.
const EnvPrefix = "RTALIGN"

// ConfigName is the file name (without extension) searched when no path is given.
const ConfigName = "rtalign"

// Config holds all configuration for rtalign.
type Config struct {
	Normalizer    NormalizerConfig    `mapstructure:"normalizer"`
	Tracker       TrackerConfig       `mapstructure:"tracker"`
	Replay        ReplayConfig        `mapstructure:"replay"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// NormalizerConfig holds signal normalization settings.
type NormalizerConfig struct {
	BufferSize  int     `mapstructure:"buffer_size"`
	TargetMean  float64 `mapstructure:"target_mean"`
	TargetStdev float64 `mapstructure:"target_stdev"`
}

// TrackerConfig holds seed chaining settings.
type TrackerConfig struct {
	seedtracker.MergePolicy `mapstructure:",squash"`

	// MinLength filters reported alignments by total seed length.
	MinLength int `mapstructure:"min_length"`
}

// ReplayConfig controls how recorded reads are streamed through sessions.
type ReplayConfig struct {
	Workers    int `mapstructure:"workers"`
	ChunkSize  int `mapstructure:"chunk_size"`
	KeepUnread int `mapstructure:"keep_unread"`
	Top        int `mapstructure:"top"`
	PollEvery  int `mapstructure:"poll_every"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ObservabilityConfig holds tracing and metrics export settings.
// DebugTrace samples every trace and logs span attributes dropped by the
// export filter; TraceVerbose keeps the per-chunk spans of streamed reads.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty path searches for rtalign.yaml in ., ./config and /etc/rtalign;
// a missing file in that case is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(ConfigName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/rtalign")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	return &Config{
		Normalizer: NormalizerConfig{
			BufferSize:  DefaultBufferSize,
			TargetMean:  DefaultTargetMean,
			TargetStdev: DefaultTargetStdev,
		},
		Tracker: TrackerConfig{
			MergePolicy: seedtracker.DefaultPolicy(),
			MinLength:   DefaultMinLength,
		},
		Replay: ReplayConfig{
			Workers:    DefaultWorkers,
			ChunkSize:  DefaultChunkSize,
			KeepUnread: DefaultKeepUnread,
			Top:        DefaultTop,
			PollEvery:  DefaultPollEvery,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
			JSON:  DefaultLogJSON,
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: DefaultOTLPEndpoint,
			OTLPInsecure: DefaultOTLPInsecure,
			SampleRatio:  DefaultSampleRatio,
			Environment:  DefaultEnvironment,
			MetricsAddr:  DefaultMetricsAddr,
			DebugTrace:   DefaultDebugTrace,
			TraceVerbose: DefaultTraceVerbose,
		},
	}
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Normalizer defaults.
	viperCfg.SetDefault("normalizer.buffer_size", DefaultBufferSize)
	viperCfg.SetDefault("normalizer.target_mean", DefaultTargetMean)
	viperCfg.SetDefault("normalizer.target_stdev", DefaultTargetStdev)

	// Tracker defaults.
	viperCfg.SetDefault("tracker.max_ref_gap", DefaultMaxRefGap)
	viperCfg.SetDefault("tracker.max_evt_gap", DefaultMaxEvtGap)
	viperCfg.SetDefault("tracker.max_diagonal_drift", DefaultMaxDiagonalDrift)
	viperCfg.SetDefault("tracker.min_length", DefaultMinLength)

	// Replay defaults.
	viperCfg.SetDefault("replay.workers", DefaultWorkers)
	viperCfg.SetDefault("replay.chunk_size", DefaultChunkSize)
	viperCfg.SetDefault("replay.keep_unread", DefaultKeepUnread)
	viperCfg.SetDefault("replay.top", DefaultTop)
	viperCfg.SetDefault("replay.poll_every", DefaultPollEvery)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	// Observability defaults.
	viperCfg.SetDefault("observability.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("observability.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("observability.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("observability.environment", DefaultEnvironment)
	viperCfg.SetDefault("observability.metrics_addr", DefaultMetricsAddr)
	viperCfg.SetDefault("observability.debug_trace", DefaultDebugTrace)
	viperCfg.SetDefault("observability.trace_verbose", DefaultTraceVerbose)
}

// Validate checks every section and returns the first violation.
func (c *Config) Validate() error {
	if c.Normalizer.BufferSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBufferSize, c.Normalizer.BufferSize)
	}

	if c.Normalizer.TargetStdev <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidTargetStdev, c.Normalizer.TargetStdev)
	}

	if err := c.Tracker.MergePolicy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGap, err)
	}

	if c.Tracker.MinLength < 0 {
		return fmt.Errorf("%w: min_length %d", ErrInvalidGap, c.Tracker.MinLength)
	}

	if c.Replay.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Replay.Workers)
	}

	if c.Replay.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.Replay.ChunkSize)
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, c.Observability.SampleRatio)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}
