package monitoring

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"quant-observer/src/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTick(t *testing.T) {
	m := NewMetrics()

	m.ObserveTick(models.MProcessResult{
		Tick:    models.MTick{Symbol: "BTC/USD", Price: 45000, Timestamp: time.Now()},
		Metrics: models.MMetricsSummary{Volatility: models.NewMetricValue(0.03)},
		Alerts: []models.MAlert{
			{Kind: models.AlertKindVolatility, Level: models.AlertLevelWarning},
		},
		ProcessingMetrics: models.MProcessingMetrics{ProcessingTimeSeconds: 0.0001},
	}, 12)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksIngested))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.BufferSize))
	assert.Equal(t, 45000.0, testutil.ToFloat64(m.LastPrice))
	assert.Equal(t, 0.03, testutil.ToFloat64(m.Volatility))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsRaised.WithLabelValues("VOLATILITY", "WARNING")))
}

func TestSeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.TicksRejected.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.TicksRejected))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TicksRejected))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.TicksIngested.Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "quant_observer_ticks_ingested_total 3")
}
