// Package config provides configuration loading and validation for the
// athenian CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers   = errors.New("workers must not be negative")
	ErrInvalidQuantiles = errors.New("quantiles must satisfy 0 <= min < max <= 1")
	ErrInvalidBucket    = errors.New("bucket size must not be negative")
	ErrInvalidLogLevel  = errors.New("unknown log level")
	ErrInvalidLogFormat = errors.New("unknown log format")
	ErrInvalidSampling  = errors.New("sample ratio must be between 0 and 1")
)

// Default configuration values.
const (
	defaultQuantileMin = 0.0
	defaultQuantileMax = 1.0
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
)

// Config holds all configuration for the athenian CLI.
type Config struct {
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AnalysisConfig holds analysis-specific configuration.
type AnalysisConfig struct {
	// Workers is the number of goroutines for the concurrency sweep.
	// Zero means one per CPU.
	Workers int `mapstructure:"workers"`

	// QuantileMin and QuantileMax clip elapsed-time outliers before
	// aggregation. The default [0, 1] keeps everything.
	QuantileMin float64 `mapstructure:"quantile_min"`
	QuantileMax float64 `mapstructure:"quantile_max"`

	// Bucket splits each repository into time buckets of this size.
	// Zero keeps one group per repository.
	Bucket time.Duration `mapstructure:"bucket"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	OTLPEndpoint  string            `mapstructure:"otlp_endpoint"`
	OTLPHeaders   map[string]string `mapstructure:"otlp_headers"`
	OTLPInsecure  bool              `mapstructure:"otlp_insecure"`
	SampleRatio   float64           `mapstructure:"sample_ratio"`
	MetricsListen string            `mapstructure:"metrics_listen"`
	Environment   string            `mapstructure:"environment"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	// Set defaults.
	setDefaults(viperCfg)

	// Read config file.
	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("athenian")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("/etc/athenian")
	}

	// Read environment variables.
	viperCfg.SetEnvPrefix("ATHENIAN")
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

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Analysis defaults.
	viperCfg.SetDefault("analysis.workers", 0)
	viperCfg.SetDefault("analysis.quantile_min", defaultQuantileMin)
	viperCfg.SetDefault("analysis.quantile_max", defaultQuantileMax)
	viperCfg.SetDefault("analysis.bucket", "0")

	// Logging defaults.
	viperCfg.SetDefault("logging.level", defaultLogLevel)
	viperCfg.SetDefault("logging.format", defaultLogFormat)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 1.0)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Analysis.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Analysis.Workers)
	}

	qmin, qmax := config.Analysis.QuantileMin, config.Analysis.QuantileMax
	if qmin < 0 || qmax > 1 || qmin >= qmax {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidQuantiles, qmin, qmax)
	}

	if config.Analysis.Bucket < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBucket, config.Analysis.Bucket)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampling, config.Telemetry.SampleRatio)
	}

	return nil
}
