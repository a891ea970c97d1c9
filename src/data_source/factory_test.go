package datasource

import (
	"errors"
	"testing"

	"quant-observer/src/data_source/binance"
	"quant-observer/src/data_source/mock"
	"quant-observer/src/helpers"
	"quant-observer/src/logger"
	"quant-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSource(t *testing.T) {
	log := logger.NewTestLogger(t, "DataSource")
	cfg := &models.MConfig{DataSource: models.MDataSourceConfig{Type: "mock", Symbol: "BTC/USD", IntervalMs: 100}}

	src, err := NewSource(cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &mock.MockSource{}, src)
	assert.False(t, src.IsRealTime())

	cfg.DataSource.Type = "Binance"
	src, err = NewSource(cfg, log)
	require.NoError(t, err)
	live, ok := src.(*binance.BinanceSource)
	require.True(t, ok)
	assert.NotNil(t, live.Fallback)
	assert.Equal(t, "mock", live.Fallback().Name())
	assert.True(t, src.IsRealTime())

	cfg.DataSource.Type = "yahoo"
	_, err = NewSource(cfg, log)
	var cfgErr *helpers.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
