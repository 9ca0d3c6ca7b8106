package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig_Defaults verifies defaults with no config file present.
func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "explicit missing file must fail")

	cfg, err = LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Analysis.Workers)
	assert.InDelta(t, 0.0, cfg.Analysis.QuantileMin, 1e-9)
	assert.InDelta(t, 1.0, cfg.Analysis.QuantileMax, 1e-9)
	assert.Equal(t, time.Duration(0), cfg.Analysis.Bucket)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.InDelta(t, 1.0, cfg.Telemetry.SampleRatio, 1e-9)
}

// TestLoadConfig_File verifies loading values from a YAML file.
func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	content := `
analysis:
  workers: 4
  quantile_min: 0.05
  quantile_max: 0.95
  bucket: 168h
logging:
  level: debug
  format: json
telemetry:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  sample_ratio: 0.25
  metrics_listen: ":9090"
  environment: staging
`

	path := filepath.Join(t.TempDir(), "athenian.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.InDelta(t, 0.05, cfg.Analysis.QuantileMin, 1e-9)
	assert.InDelta(t, 0.95, cfg.Analysis.QuantileMax, 1e-9)
	assert.Equal(t, 7*24*time.Hour, cfg.Analysis.Bucket)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.OTLPInsecure)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 1e-9)
	assert.Equal(t, ":9090", cfg.Telemetry.MetricsListen)
	assert.Equal(t, "staging", cfg.Telemetry.Environment)
}

// TestLoadConfig_Validation verifies validation of out-of-range values.
func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "negative workers",
			content: "analysis:\n  workers: -1\n",
			wantErr: ErrInvalidWorkers,
		},
		{
			name:    "inverted quantiles",
			content: "analysis:\n  quantile_min: 0.9\n  quantile_max: 0.1\n",
			wantErr: ErrInvalidQuantiles,
		},
		{
			name:    "quantile above one",
			content: "analysis:\n  quantile_max: 1.5\n",
			wantErr: ErrInvalidQuantiles,
		},
		{
			name:    "negative bucket",
			content: "analysis:\n  bucket: -1h\n",
			wantErr: ErrInvalidBucket,
		},
		{
			name:    "bad log level",
			content: "logging:\n  level: loud\n",
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "bad log format",
			content: "logging:\n  format: xml\n",
			wantErr: ErrInvalidLogFormat,
		},
		{
			name:    "sample ratio above one",
			content: "telemetry:\n  sample_ratio: 2\n",
			wantErr: ErrInvalidSampling,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "athenian.yaml")
			require.NoError(t, os.WriteFile(path, []byte(testCase.content), 0o600))

			_, err := LoadConfig(path)
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}
