package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts, err := cfg.Reconciliation.Options()
	require.NoError(t, err)
	assert.Equal(t, 0.99, opts.ExactMatchConfidence)
	assert.Equal(t, 300.0, opts.CalibrationDivisor)
	assert.Equal(t, 70, opts.ItemMatchThreshold)
	assert.Equal(t, 0.6, opts.LowConfidenceThreshold)
	assert.True(t, opts.PriceTolerance.IsZero())
}

func TestLoadFile_YAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
service:
  environment: production
server:
  port: 9000
  request_timeout: 5s
reconciliation:
  price_tolerance: "0.01"
batch:
  concurrency: 8
  output_dir: /tmp/out
`)
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("QUANTITY_TOLERANCE", "2")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Service.Environment)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 9999, cfg.Server.GRPCPort)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, "/tmp/out", cfg.Batch.OutputDir)
	// untouched sections keep defaults
	assert.Equal(t, 0.6, cfg.Reconciliation.LowConfidenceThreshold)

	opts, err := cfg.Reconciliation.Options()
	require.NoError(t, err)
	assert.True(t, opts.PriceTolerance.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, opts.QuantityTolerance.Equal(decimal.NewFromInt(2)))
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = LoadFile(writeConfig(t, "server: [not, a, map"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"divisor", func(c *Config) { c.Reconciliation.CalibrationDivisor = 0 }, "reconciliation.calibration_divisor"},
		{"threshold", func(c *Config) { c.Reconciliation.ItemMatchThreshold = 101 }, "reconciliation.item_match_threshold"},
		{"low confidence", func(c *Config) { c.Reconciliation.LowConfidenceThreshold = 1.5 }, "reconciliation.low_confidence_threshold"},
		{"exact confidence", func(c *Config) { c.Reconciliation.ExactMatchConfidence = -1 }, "reconciliation.exact_match_confidence"},
		{"negative tolerance", func(c *Config) { c.Reconciliation.PriceTolerance = "-0.5" }, "reconciliation.price_tolerance"},
		{"bad tolerance", func(c *Config) { c.Reconciliation.QuantityTolerance = "abc" }, "reconciliation.quantity_tolerance"},
		{"concurrency", func(c *Config) { c.Batch.Concurrency = 0 }, "batch.concurrency"},
		{"catalog source", func(c *Config) { c.Catalog.Source = "s3" }, "catalog.source"},
		{"postgres without db", func(c *Config) { c.Catalog.Source = "postgres" }, "catalog.source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-a-number")
	t.Setenv("CFG_TEST_BOOL", "true")

	assert.Equal(t, 7, getEnvInt("CFG_TEST_INT", 7))
	assert.True(t, getEnvBool("CFG_TEST_BOOL", false))
	assert.Equal(t, "fallback", getEnv("CFG_TEST_UNSET", "fallback"))
}
