package alerts

import (
	"errors"
	"math"
	"testing"

	"quant-observer/src/helpers"
	"quant-observer/src/logger"
	"quant-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, capacity int) *AlertEngine {
	t.Helper()
	return NewAlertEngine(capacity, logger.NewTestLogger(t, "AlertEngine"))
}

func alertConfig() models.MAlertConfig {
	return models.MAlertConfig{
		Thresholds: models.MThresholds{
			PriceChangePct:     0.02,
			VolatilityWarning:  0.02,
			VolatilityCritical: 0.05,
		},
		LogCapacity: 100,
	}
}

func volSummary(v float64) models.MMetricsSummary {
	return models.MMetricsSummary{Symbol: "BTC/USD", Volatility: models.NewMetricValue(v)}
}

func returnSummary(r float64) models.MMetricsSummary {
	return models.MMetricsSummary{Symbol: "BTC/USD", SimpleReturn: models.NewMetricValue(r)}
}

func TestSustainedBreachRaisesOneAlert(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()

	var raised []models.MAlert
	for i := 0; i < 5; i++ {
		raised = append(raised, e.Evaluate(volSummary(0.03), cfg)...)
	}

	require.Len(t, raised, 1)
	assert.Equal(t, models.AlertLevelWarning, raised[0].Level)
	assert.Equal(t, models.AlertKindVolatility, raised[0].Kind)
	assert.Equal(t, 0.03, raised[0].ObservedValue)
	assert.Equal(t, 0.02, raised[0].Threshold)
	assert.NotEmpty(t, raised[0].ID)
	assert.Equal(t, int64(1), e.Count())
}

func TestRecoveryRearms(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()

	require.Len(t, e.Evaluate(volSummary(0.03), cfg), 1)
	assert.Empty(t, e.Evaluate(volSummary(0.01), cfg), "recovery is silent by default")
	require.Len(t, e.Evaluate(volSummary(0.03), cfg), 1)

	assert.Equal(t, int64(2), e.Count())
	assert.Len(t, e.AllAlerts(), 2)
}

func TestCriticalSupersedesWarning(t *testing.T) {
	e := newEngine(t, 10)

	raised := e.Evaluate(volSummary(0.08), alertConfig())
	require.Len(t, raised, 1)
	assert.Equal(t, models.AlertLevelCritical, raised[0].Level)
	assert.Equal(t, 0.05, raised[0].Threshold)

	for _, a := range e.AllAlerts() {
		assert.NotEqual(t, models.AlertLevelWarning, a.Level)
	}
}

func TestWorseningBreachStaysSilent(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()

	calls := 0
	e.RegisterCallback(func(models.MAlert) error {
		calls++
		return nil
	})

	var raised []models.MAlert
	for _, v := range []float64{0.03, 0.03, 0.08, 0.08, 0.08} {
		raised = append(raised, e.Evaluate(volSummary(v), cfg)...)
	}

	require.Len(t, raised, 1)
	assert.Equal(t, models.AlertLevelWarning, raised[0].Level)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), e.Count())

	// only a recovery re-arms the kind
	assert.Empty(t, e.Evaluate(volSummary(0.01), cfg))
	again := e.Evaluate(volSummary(0.08), cfg)
	require.Len(t, again, 1)
	assert.Equal(t, models.AlertLevelCritical, again[0].Level)
}

func TestCheckDefersCallbacksToDispatch(t *testing.T) {
	e := newEngine(t, 10)

	calls := 0
	e.RegisterCallback(func(models.MAlert) error {
		calls++
		return nil
	})

	created := e.Check(volSummary(0.03), alertConfig())
	require.Len(t, created, 1)
	assert.Zero(t, calls)
	assert.Len(t, e.AllAlerts(), 1)
	assert.Equal(t, int64(1), e.Count())

	e.Dispatch(created)
	assert.Equal(t, 1, calls)

	e.Dispatch(nil)
	assert.Equal(t, 1, calls)
}

func TestPriceMoveUsesAbsoluteReturn(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()

	assert.Empty(t, e.Evaluate(returnSummary(0.01), cfg))

	down := e.Evaluate(returnSummary(-0.03), cfg)
	require.Len(t, down, 1)
	assert.Equal(t, models.AlertKindPriceMove, down[0].Kind)
	assert.Equal(t, models.AlertLevelWarning, down[0].Level)
	assert.Contains(t, down[0].Message, "decreased")

	assert.Empty(t, e.Evaluate(returnSummary(0.04), cfg), "still in breach")
}

func TestKindsAreIndependent(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()

	both := models.MMetricsSummary{
		SimpleReturn: models.NewMetricValue(0.05),
		Volatility:   models.NewMetricValue(0.03),
	}
	require.Len(t, e.Evaluate(both, cfg), 2)

	// price recovers, volatility stays high
	onlyVol := models.MMetricsSummary{
		SimpleReturn: models.NewMetricValue(0.001),
		Volatility:   models.NewMetricValue(0.03),
	}
	assert.Empty(t, e.Evaluate(onlyVol, cfg))

	states := e.States()
	require.Len(t, states, 2)
	assert.Equal(t, models.AlertStateArmed, states[0].State)
	assert.Equal(t, models.AlertStateFired, states[1].State)
	assert.Equal(t, models.AlertLevelWarning, states[1].Level)
}

func TestUnavailableAndNaNAreSkipped(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()

	assert.Empty(t, e.Evaluate(models.MMetricsSummary{}, cfg))
	assert.Empty(t, e.Evaluate(volSummary(math.NaN()), cfg))
	assert.Empty(t, e.Evaluate(volSummary(math.Inf(1)), cfg))

	bad := alertConfig()
	bad.Thresholds.VolatilityWarning = math.NaN()
	assert.Empty(t, e.Evaluate(volSummary(0.03), bad))

	// an unavailable field does not re-arm a fired kind
	require.Len(t, e.Evaluate(volSummary(0.03), cfg), 1)
	assert.Empty(t, e.Evaluate(models.MMetricsSummary{}, cfg))
	assert.Empty(t, e.Evaluate(volSummary(0.03), cfg))

	for _, st := range e.States() {
		if st.Kind == models.AlertKindVolatility {
			assert.Equal(t, models.AlertStateFired, st.State)
		}
	}
}

func TestThresholdsAreReadPerCall(t *testing.T) {
	e := newEngine(t, 10)

	relaxed := alertConfig()
	relaxed.Thresholds.VolatilityWarning = 0.04
	assert.Empty(t, e.Evaluate(volSummary(0.03), relaxed))

	require.Len(t, e.Evaluate(volSummary(0.03), alertConfig()), 1)
}

func TestAlertLogIsBounded(t *testing.T) {
	e := newEngine(t, 3)
	cfg := alertConfig()

	for i := 0; i < 5; i++ {
		require.Len(t, e.Evaluate(returnSummary(0.05+float64(i)/100), cfg), 1)
		e.Evaluate(returnSummary(0), cfg)
	}

	all := e.AllAlerts()
	require.Len(t, all, 3)
	assert.InDelta(t, 0.07, all[0].ObservedValue, 1e-12, "the two oldest alerts are evicted")
	assert.InDelta(t, 0.09, all[2].ObservedValue, 1e-12)
	assert.Equal(t, int64(5), e.Count())
}

func TestRecentAlertsNewestFirstWithoutMutation(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()

	for i := 0; i < 3; i++ {
		e.Evaluate(returnSummary(0.05+float64(i)/100), cfg)
		e.Evaluate(returnSummary(0), cfg)
	}

	recent := e.RecentAlerts(2)
	require.Len(t, recent, 2)
	assert.InDelta(t, 0.07, recent[0].ObservedValue, 1e-12)
	assert.InDelta(t, 0.06, recent[1].ObservedValue, 1e-12)

	recent[0].Message = "changed"
	assert.Len(t, e.AllAlerts(), 3)
	assert.NotEqual(t, "changed", e.RecentAlerts(1)[0].Message)
	assert.Empty(t, e.RecentAlerts(0))
}

func TestCallbackFailuresAreIsolated(t *testing.T) {
	e := newEngine(t, 10)

	var observed []*helpers.CallbackError
	e.OnCallbackError(func(err *helpers.CallbackError) { observed = append(observed, err) })

	var calls []string
	e.RegisterCallback(func(models.MAlert) error {
		calls = append(calls, "first")
		return errors.New("delivery failed")
	})
	e.RegisterCallback(func(models.MAlert) error {
		calls = append(calls, "second")
		panic("boom")
	})
	e.RegisterCallback(func(a models.MAlert) error {
		calls = append(calls, "third")
		return nil
	})

	raised := e.Evaluate(volSummary(0.03), alertConfig())
	require.Len(t, raised, 1)

	assert.Equal(t, []string{"first", "second", "third"}, calls)
	assert.Len(t, e.AllAlerts(), 1, "the alert is logged despite failing callbacks")
	assert.Equal(t, int64(2), e.CallbackFailures())

	require.Len(t, observed, 2)
	assert.Equal(t, 0, observed[0].Callback)
	assert.Equal(t, 1, observed[1].Callback)
	assert.Equal(t, raised[0].ID, observed[1].AlertID)
	assert.Contains(t, observed[1].Error(), "panic: boom")
}

func TestCallbackRunsOncePerAlertAndMayReadEngine(t *testing.T) {
	e := newEngine(t, 10)

	calls := 0
	e.RegisterCallback(func(a models.MAlert) error {
		calls++
		assert.Equal(t, a.ID, e.RecentAlerts(1)[0].ID)
		return nil
	})

	cfg := alertConfig()
	for i := 0; i < 4; i++ {
		e.Evaluate(volSummary(0.03), cfg)
	}
	assert.Equal(t, 1, calls)
}

func TestEmitResolved(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()
	cfg.EmitResolved = true

	require.Len(t, e.Evaluate(volSummary(0.03), cfg), 1)

	resolved := e.Evaluate(volSummary(0.01), cfg)
	require.Len(t, resolved, 1)
	assert.True(t, resolved[0].Resolved)
	assert.Equal(t, models.AlertLevelInfo, resolved[0].Level)
	assert.Equal(t, models.AlertKindVolatility, resolved[0].Kind)

	assert.Empty(t, e.Evaluate(volSummary(0.01), cfg), "an armed kind resolves only once")
}

func TestClearAlertsRearms(t *testing.T) {
	e := newEngine(t, 10)
	cfg := alertConfig()

	require.Len(t, e.Evaluate(volSummary(0.03), cfg), 1)
	e.ClearAlerts()
	assert.Empty(t, e.AllAlerts())
	assert.Equal(t, int64(1), e.Count(), "lifetime count survives a clear")

	require.Len(t, e.Evaluate(volSummary(0.03), cfg), 1)
}

func TestResizeLog(t *testing.T) {
	e := newEngine(t, 5)
	cfg := alertConfig()
	for i := 0; i < 4; i++ {
		e.Evaluate(returnSummary(0.05), cfg)
		e.Evaluate(returnSummary(0), cfg)
	}

	e.ResizeLog(2)
	assert.Equal(t, 2, e.LogCapacity())
	assert.Equal(t, 2, e.Retained())
}
