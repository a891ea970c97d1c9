package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func testConfig() models.MPipelineConfig {
	return models.MPipelineConfig{
		Analytics: models.MAnalyticsConfig{
			BufferCapacity:   10,
			ShortMAWindow:    2,
			LongMAWindow:     3,
			EMAWindow:        3,
			VolatilityWindow: 2,
		},
		Alerts: models.MAlertConfig{
			Thresholds: models.MThresholds{
				PriceChangePct:     0.5,
				VolatilityWarning:  0.02,
				VolatilityCritical: 0.05,
			},
			LogCapacity: 5,
		},
	}
}

func newPipeline(t *testing.T, cfg models.MPipelineConfig) (*Pipeline, *monitoring.Metrics) {
	t.Helper()
	m := monitoring.NewMetrics()
	p, err := NewPipeline(cfg, m, logger.NewTestLogger(t, "Pipeline"))
	require.NoError(t, err)
	return p, m
}

func tick(i int, price float64) models.MTick {
	return models.MTick{Symbol: "BTC/USD", Price: price, Volume: 1, Timestamp: t0.Add(time.Duration(i) * time.Second)}
}

func TestProcessTickFlow(t *testing.T) {
	p, m := newPipeline(t, testConfig())

	var observed []models.MProcessResult
	p.AddObserver(func(r models.MProcessResult) { observed = append(observed, r) })

	var notified []models.MAlert
	p.RegisterAlertCallback(func(a models.MAlert) error {
		notified = append(notified, a)
		return nil
	})

	first, err := p.ProcessTick(tick(0, 100))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Metrics.SampleCount)
	assert.False(t, first.Metrics.Volatility.IsAvailable())
	assert.Empty(t, first.Alerts)

	// alternating 10% moves keep volatility far above critical
	total := 0
	for i, price := range []float64{110, 100, 110, 100} {
		res, err := p.ProcessTick(tick(i+1, price))
		require.NoError(t, err)
		total += len(res.Alerts)
	}

	assert.Equal(t, 1, total, "a sustained breach raises a single alert")
	require.Len(t, notified, 1)
	assert.Equal(t, models.AlertLevelCritical, notified[0].Level)
	assert.Len(t, observed, 5)

	stats := p.Stats()
	assert.Equal(t, 5, stats.RecordsStored)
	assert.Equal(t, int64(5), stats.TicksProcessed)
	assert.Equal(t, int64(1), stats.AlertsGenerated)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.TicksIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsRaised.WithLabelValues("VOLATILITY", "CRITICAL")))
	assert.False(t, p.LastUpdate().IsZero())
}

func TestProcessTickRejectsInvalid(t *testing.T) {
	p, m := newPipeline(t, testConfig())
	require.Equal(t, 1, p.Seed([]models.MTick{tick(0, 100)}))

	_, err := p.ProcessTick(tick(1, -5))
	var valErr *helpers.ValidationError
	require.True(t, errors.As(err, &valErr))

	assert.Len(t, p.Snapshot(), 1)
	assert.Equal(t, int64(1), p.Stats().TicksRejected)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksRejected))
}

func TestUpdateConfigAppliesOnNextTick(t *testing.T) {
	p, _ := newPipeline(t, testConfig())

	for i, price := range []float64{100, 101, 102} {
		_, err := p.ProcessTick(tick(i, price))
		require.NoError(t, err)
	}

	cfg := testConfig()
	cfg.Alerts.Thresholds.PriceChangePct = 0.001
	require.NoError(t, p.UpdateConfig(cfg))

	res, err := p.ProcessTick(tick(3, 103))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, models.AlertKindPriceMove, res.Alerts[0].Kind)
	assert.Equal(t, 0.001, res.Alerts[0].Threshold)
}

func TestUpdateConfigResizesAndValidates(t *testing.T) {
	p, _ := newPipeline(t, testConfig())
	for i := 0; i < 8; i++ {
		_, err := p.ProcessTick(tick(i, float64(100+i)))
		require.NoError(t, err)
	}

	cfg := testConfig()
	cfg.Analytics.BufferCapacity = 4
	require.NoError(t, p.UpdateConfig(cfg))

	snap := p.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, 104.0, snap[0].Price)
	assert.Equal(t, 4, p.Stats().BufferCapacity)

	bad := testConfig()
	bad.Analytics.VolatilityWindow = 1
	err := p.UpdateConfig(bad)
	var valErr *helpers.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, 2, p.Config().Analytics.VolatilityWindow, "a rejected update leaves the config unchanged")
}

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Analytics.BufferCapacity = 0
	_, err := NewPipeline(cfg, nil, logger.NewTestLogger(t, "Pipeline"))
	require.Error(t, err)
}

func TestSeedDoesNotRaiseAlerts(t *testing.T) {
	p, _ := newPipeline(t, testConfig())

	accepted := p.Seed([]models.MTick{tick(0, 100), tick(1, 150), tick(2, 0), tick(3, 100)})
	assert.Equal(t, 3, accepted)
	assert.Empty(t, p.AllAlerts())

	metrics := p.CurrentMetrics()
	assert.Equal(t, 3, metrics.SampleCount)
	assert.True(t, metrics.Volatility.IsAvailable())
}

func TestQueries(t *testing.T) {
	p, _ := newPipeline(t, testConfig())

	_, err := p.PriceRange(0)
	var insuff *helpers.InsufficientDataError
	require.True(t, errors.As(err, &insuff))
	assert.Equal(t, 0, insuff.Available)
	assert.Empty(t, p.RecentAlerts(5))

	for i, price := range []float64{100, 90, 120, 110} {
		_, err := p.ProcessTick(tick(i, price))
		require.NoError(t, err)
	}

	pr, err := p.PriceRange(0)
	require.NoError(t, err)
	assert.Equal(t, models.MPriceRange{Min: 90, Max: 120, Count: 4}, pr)

	assert.Len(t, p.LatestN(2), 2)
	assert.Len(t, p.Range(t0.Add(time.Second), t0.Add(2*time.Second)), 2)
	assert.Len(t, p.Series().Points, 4)
	assert.Equal(t, 3, p.ReturnDistribution(5).Count)

	candles, err := p.Candles("1m")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 4, candles[0].DataPoints)

	assert.Empty(t, p.Stats().Source)
}

// -----------------------------------------------------------------------------

type stubSource struct {
	name     string
	realTime atomic.Bool
}

func (s *stubSource) Name() string     { return s.name }
func (s *stubSource) IsRealTime() bool { return s.realTime.Load() }
func (s *stubSource) Stop() error      { return nil }
func (s *stubSource) Start(context.Context, chan<- models.MTick, *sync.WaitGroup) error {
	return nil
}

func TestStatsFollowSourceFallback(t *testing.T) {
	p, _ := newPipeline(t, testConfig())

	src := &stubSource{name: "binance"}
	src.realTime.Store(true)
	p.SetSource(src)

	stats := p.Stats()
	assert.Equal(t, "binance", stats.Source)
	assert.True(t, stats.RealTime)

	src.realTime.Store(false)
	assert.False(t, p.Stats().RealTime)

	p.SetSource(nil)
	assert.Empty(t, p.Stats().Source)
}

func TestLookbackQueries(t *testing.T) {
	p, _ := newPipeline(t, testConfig())
	p.now = func() time.Time { return t0.Add(10 * time.Minute) }

	for i, price := range []float64{100, 130, 90, 110} {
		_, err := p.ProcessTick(models.MTick{
			Symbol:    "BTC/USD",
			Price:     price,
			Volume:    1,
			Timestamp: t0.Add(time.Duration(i*3) * time.Minute),
		})
		require.NoError(t, err)
	}

	// ticks at +0, +3, +6 and +9 minutes; the clock is at +10
	recent := p.History(5 * time.Minute)
	require.Len(t, recent, 2)
	assert.Equal(t, 90.0, recent[0].Price)
	assert.Len(t, p.History(0), 4)

	pr, err := p.PriceRange(5 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.MPriceRange{Min: 90, Max: 110, Count: 2}, pr)

	pr, err = p.PriceRange(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, models.MPriceRange{Min: 90, Max: 130, Count: 4}, pr)

	_, err = p.PriceRange(30 * time.Second)
	var insuff *helpers.InsufficientDataError
	assert.True(t, errors.As(err, &insuff))
}

func TestAlertCallbackMayReconfigurePipeline(t *testing.T) {
	cfg := testConfig()
	cfg.Alerts.Thresholds.PriceChangePct = 0.001
	p, _ := newPipeline(t, cfg)

	p.RegisterAlertCallback(func(a models.MAlert) error {
		if a.Kind != models.AlertKindPriceMove {
			return nil
		}
		relaxed := p.Config()
		relaxed.Alerts.Thresholds.PriceChangePct = 0.5
		return p.UpdateConfig(relaxed)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, price := range []float64{100, 101, 102} {
			_, err := p.ProcessTick(tick(i, price))
			assert.NoError(t, err)
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("ProcessTick blocked while an alert callback updated the config")
	}

	assert.Equal(t, 0.5, p.Config().Alerts.Thresholds.PriceChangePct)
	assert.Len(t, p.AllAlerts(), 1)
}
