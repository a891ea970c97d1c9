package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quant-observer/src/helpers"
	"quant-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
name: test-observer
port: 9000
data_source:
  type: mock
  symbol: ETH/USD
pipeline:
  analytics:
    short_ma_window: 5
    long_ma_window: 10
  alerts:
    thresholds:
      volatility_warning: 0.01
      volatility_critical: 0.03
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewConfigFillsDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-observer", cfg.Name)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "ETH/USD", cfg.DataSource.Symbol)
	assert.Equal(t, "none", cfg.Storage.DBType)
	assert.Equal(t, 5, cfg.Pipeline.Analytics.ShortMAWindow)
	assert.Equal(t, 10, cfg.Pipeline.Analytics.LongMAWindow)
	assert.Equal(t, 5000, cfg.Pipeline.Analytics.BufferCapacity)
	assert.Equal(t, 20, cfg.Pipeline.Analytics.VolatilityWindow)
	assert.InDelta(t, 0.02, cfg.Pipeline.Alerts.Thresholds.PriceChangePct, 1e-12)
	assert.InDelta(t, 0.03, cfg.Pipeline.Alerts.Thresholds.VolatilityCritical, 1e-12)
}

func TestNewConfigEnvOverrides(t *testing.T) {
	t.Setenv("QO_SYMBOL", "SOL/USD")
	t.Setenv("QO_LOG_LEVEL", "DEBUG")
	t.Setenv("QO_BUFFER_CAPACITY", "250")
	t.Setenv("QO_VOLATILITY_CRITICAL", "0.08")

	cfg, err := NewConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "SOL/USD", cfg.DataSource.Symbol)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 250, cfg.Pipeline.Analytics.BufferCapacity)
	assert.InDelta(t, 0.08, cfg.Pipeline.Alerts.Thresholds.VolatilityCritical, 1e-12)
}

func TestNewConfigErrors(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = NewConfig(writeConfig(t, "name: [unterminated"))
	require.Error(t, err)

	_, err = NewConfig(writeConfig(t, "data_source:\n  type: carrier-pigeon\n"))
	var valErr *helpers.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "data_source.type", valErr.Field)
}

func TestValidatePipeline(t *testing.T) {
	require.NoError(t, ValidatePipeline(DefaultPipeline()))

	cases := map[string]func(p *models.MPipelineConfig){
		"analytics.buffer_capacity":             func(p *models.MPipelineConfig) { p.Analytics.BufferCapacity = 0 },
		"analytics.short_ma_window":             func(p *models.MPipelineConfig) { p.Analytics.ShortMAWindow = 1 },
		"analytics.ema_window":                  func(p *models.MPipelineConfig) { p.Analytics.EMAWindow = 0 },
		"analytics.volatility_window":           func(p *models.MPipelineConfig) { p.Analytics.VolatilityWindow = -3 },
		"alerts.log_capacity":                   func(p *models.MPipelineConfig) { p.Alerts.LogCapacity = 0 },
		"alerts.thresholds.price_change_pct":    func(p *models.MPipelineConfig) { p.Alerts.Thresholds.PriceChangePct = 0 },
		"alerts.thresholds.volatility_critical": func(p *models.MPipelineConfig) { p.Alerts.Thresholds.VolatilityCritical = 0.01 },
		"alerts.thresholds.volatility_warning":  func(p *models.MPipelineConfig) { p.Alerts.Thresholds.VolatilityWarning = -1 },
	}

	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			p := DefaultPipeline()
			mutate(&p)

			err := ValidatePipeline(p)
			var valErr *helpers.ValidationError
			require.True(t, errors.As(err, &valErr), "expected validation error, got %v", err)
			assert.Equal(t, field, valErr.Field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Alerts.Thresholds.VolatilityWarning = 0.04
	cfg.Pipeline.Alerts.Thresholds.VolatilityCritical = 0.09

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Pipeline, loaded.Pipeline)
	assert.Equal(t, cfg.DataSource, loaded.DataSource)
}
