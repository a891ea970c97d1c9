package analysis

import (
	"errors"

	"quant-observer/src/analysis/core"
	"quant-observer/src/logger"
	"quant-observer/src/models"
)

// AnalysisFacade exposes the analytics to the pipeline and the server.
// It holds no market state; every method is a function of its arguments.
type AnalysisFacade struct {
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAnalysisFacade(log *logger.Logger) *AnalysisFacade {
	return &AnalysisFacade{Logger: log}
}

// -----------------------------------------------------------------------------

// ComputeMetrics builds the summary and logs when a return in the snapshot
// could not be defined.
func (a *AnalysisFacade) ComputeMetrics(snapshot []models.MTick, cfg models.MAnalyticsConfig) models.MMetricsSummary {
	summary, err := computeMetrics(snapshot, cfg)
	if err != nil && a.Logger != nil {
		a.Logger.Warning("Return-based metrics unavailable for %s: %v", summary.Symbol, err)
	}
	return summary
}

func (a *AnalysisFacade) ComputeSeries(snapshot []models.MTick, cfg models.MAnalyticsConfig) models.MAnalyticsSeries {
	return ComputeSeries(snapshot, cfg)
}

func (a *AnalysisFacade) ReturnDistribution(snapshot []models.MTick, bins int) models.MReturnDistribution {
	return ReturnDistribution(snapshot, bins)
}

func (a *AnalysisFacade) Resample(snapshot []models.MTick, windowName string) ([]models.MCandle, error) {
	return Resample(snapshot, windowName)
}

// -----------------------------------------------------------------------------

// ComputeMetrics derives one summary from a snapshot using the caller's
// window sizes. With fewer than two ticks every derived field is unavailable.
func ComputeMetrics(snapshot []models.MTick, cfg models.MAnalyticsConfig) models.MMetricsSummary {
	summary, _ := computeMetrics(snapshot, cfg)
	return summary
}

func computeMetrics(snapshot []models.MTick, cfg models.MAnalyticsConfig) (models.MMetricsSummary, error) {
	summary := models.MMetricsSummary{
		SampleCount: len(snapshot),
		Windows:     windowsOf(cfg),
	}
	if len(snapshot) == 0 {
		return summary, nil
	}

	latest := snapshot[len(snapshot)-1]
	summary.Symbol = latest.Symbol
	summary.LatestPrice = models.NewMetricValue(latest.Price)
	summary.LatestTimestamp = latest.Timestamp

	if len(snapshot) < 2 {
		return summary, nil
	}

	prices := Prices(snapshot)
	var errs []error

	// 1. Returns
	if logs, err := core.LogReturns(prices); err != nil {
		errs = append(errs, err)
	} else {
		summary.LogReturn = models.NewMetricValue(logs[len(logs)-1])
	}

	simple, err := core.SimpleReturns(prices)
	if err != nil {
		errs = append(errs, err)
	} else {
		last := simple[len(simple)-1]
		summary.SimpleReturn = models.NewMetricValue(last)
		summary.PriceChangePct = models.NewMetricValue(last * 100)

		mean, _ := core.CalculateMeanStd(simple)
		summary.MeanReturn = models.NewMetricValue(mean * 100)

		// 2. Volatility
		summary.Volatility = models.MetricFrom(core.Volatility(simple, cfg.VolatilityWindow))
	}

	// 3. Moving averages
	summary.SMAShort = models.MetricFrom(core.MovingAverage(prices, cfg.ShortMAWindow))
	summary.SMALong = models.MetricFrom(core.MovingAverage(prices, cfg.LongMAWindow))
	if ema, ok := core.ExponentialMovingAverage(prices, cfg.EMAWindow); ok {
		summary.EMA = models.NewMetricValue(ema[len(ema)-1])
	}

	return summary, errors.Join(errs...)
}

// -----------------------------------------------------------------------------

// ComputeSeries aligns price, both SMAs and the EMA on every tick of the
// snapshot for charting. Points before a window fills carry unavailable values.
func ComputeSeries(snapshot []models.MTick, cfg models.MAnalyticsConfig) models.MAnalyticsSeries {
	series := models.MAnalyticsSeries{
		Points:  make([]models.MSeriesPoint, len(snapshot)),
		Windows: windowsOf(cfg),
	}
	if len(snapshot) == 0 {
		return series
	}
	series.Symbol = snapshot[len(snapshot)-1].Symbol

	prices := Prices(snapshot)
	short, _ := core.MovingAverageSeries(prices, cfg.ShortMAWindow)
	long, _ := core.MovingAverageSeries(prices, cfg.LongMAWindow)
	ema, _ := core.ExponentialMovingAverage(prices, cfg.EMAWindow)

	for i, tick := range snapshot {
		series.Points[i] = models.MSeriesPoint{
			Timestamp: tick.Timestamp,
			Price:     tick.Price,
			SMAShort:  alignedAt(short, cfg.ShortMAWindow, i),
			SMALong:   alignedAt(long, cfg.LongMAWindow, i),
			EMA:       alignedAt(ema, cfg.EMAWindow, i),
		}
	}
	return series
}

// alignedAt maps tick index i onto a rolling series that starts at window-1.
func alignedAt(values []float64, window, i int) models.MMetricValue {
	idx := i - (window - 1)
	if idx < 0 || idx >= len(values) {
		return models.UnavailableMetric()
	}
	return models.NewMetricValue(values[idx])
}

// -----------------------------------------------------------------------------

// ReturnDistribution histograms the simple returns of the snapshot, in percent.
func ReturnDistribution(snapshot []models.MTick, bins int) models.MReturnDistribution {
	dist := models.MReturnDistribution{Bins: []models.MHistogramBin{}}

	returns, err := core.SimpleReturns(Prices(snapshot))
	if err != nil || len(returns) == 0 {
		return dist
	}

	pct := make([]float64, len(returns))
	for i, r := range returns {
		pct[i] = r * 100
	}

	for _, b := range core.Histogram(pct, bins) {
		dist.Bins = append(dist.Bins, models.MHistogramBin{Lower: b.Lower, Upper: b.Upper, Count: b.Count})
	}

	mean, std := core.CalculateMeanStd(pct)
	dist.Count = len(pct)
	dist.Mean = models.NewMetricValue(mean)
	if len(pct) > 1 {
		dist.Std = models.NewMetricValue(std)
	}
	return dist
}

// -----------------------------------------------------------------------------

// Prices extracts the price column of a snapshot.
func Prices(snapshot []models.MTick) []float64 {
	prices := make([]float64, len(snapshot))
	for i, t := range snapshot {
		prices[i] = t.Price
	}
	return prices
}

func windowsOf(cfg models.MAnalyticsConfig) models.MAnalyticsWindows {
	return models.MAnalyticsWindows{
		ShortMA:    cfg.ShortMAWindow,
		LongMA:     cfg.LongMAWindow,
		EMA:        cfg.EMAWindow,
		Volatility: cfg.VolatilityWindow,
	}
}
