package pipeline

import (
	"math"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/models"
)

// -----------------------------------------------------------------------------
// Read side. Every method works on a copy and has no side effect.
// -----------------------------------------------------------------------------

func (p *Pipeline) Snapshot() []models.MTick {
	return p.buffer.Snapshot()
}

func (p *Pipeline) Latest() (models.MTick, bool) {
	return p.buffer.Latest()
}

func (p *Pipeline) LatestN(n int) []models.MTick {
	return p.buffer.LatestN(n)
}

func (p *Pipeline) Range(start, end time.Time) []models.MTick {
	return p.buffer.Range(start, end)
}

// History returns the ticks stamped within the last lookback, in insertion
// order. A lookback <= 0 returns the whole buffer.
func (p *Pipeline) History(lookback time.Duration) []models.MTick {
	if lookback <= 0 {
		return p.buffer.Snapshot()
	}
	return p.buffer.Since(p.now().Add(-lookback))
}

// PriceRange returns the min and max price over the last lookback, or over
// the whole buffer when lookback <= 0. An empty window is an
// InsufficientDataError.
func (p *Pipeline) PriceRange(lookback time.Duration) (models.MPriceRange, error) {
	if lookback <= 0 {
		lo, hi, ok := p.buffer.PriceRange()
		if !ok {
			return models.MPriceRange{}, helpers.NewInsufficientDataError("price range", 1, 0)
		}
		return models.MPriceRange{Min: lo, Max: hi, Count: p.buffer.Len()}, nil
	}

	ticks := p.History(lookback)
	if len(ticks) == 0 {
		return models.MPriceRange{}, helpers.NewInsufficientDataError("price range", 1, 0)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range ticks {
		lo = math.Min(lo, t.Price)
		hi = math.Max(hi, t.Price)
	}
	return models.MPriceRange{Min: lo, Max: hi, Count: len(ticks)}, nil
}

// -----------------------------------------------------------------------------

// CurrentMetrics recomputes the summary from the current buffer.
func (p *Pipeline) CurrentMetrics() models.MMetricsSummary {
	return p.analysis.ComputeMetrics(p.buffer.Snapshot(), p.Config().Analytics)
}

func (p *Pipeline) Series() models.MAnalyticsSeries {
	return p.analysis.ComputeSeries(p.buffer.Snapshot(), p.Config().Analytics)
}

func (p *Pipeline) ReturnDistribution(bins int) models.MReturnDistribution {
	return p.analysis.ReturnDistribution(p.buffer.Snapshot(), bins)
}

func (p *Pipeline) Candles(windowName string) ([]models.MCandle, error) {
	return p.analysis.Resample(p.buffer.Snapshot(), windowName)
}

// -----------------------------------------------------------------------------

// RecentAlerts returns up to n alerts, newest first.
func (p *Pipeline) RecentAlerts(n int) []models.MAlert {
	return p.alerts.RecentAlerts(n)
}

func (p *Pipeline) AllAlerts() []models.MAlert {
	return p.alerts.AllAlerts()
}

func (p *Pipeline) AlertStates() []models.MAlertState {
	return p.alerts.States()
}

// ClearAlerts empties the alert log and re-arms every rule.
func (p *Pipeline) ClearAlerts() {
	p.alerts.ClearAlerts()
}

// -----------------------------------------------------------------------------

func (p *Pipeline) Stats() models.MStats {
	var source string
	var realTime bool
	if ref := p.source.Load(); ref != nil {
		source, realTime = ref.src.Name(), ref.src.IsRealTime()
	}

	return models.MStats{
		RecordsStored:   p.buffer.Len(),
		BufferCapacity:  p.buffer.Capacity(),
		TicksProcessed:  p.processed.Load(),
		TicksRejected:   p.rejected.Load(),
		AlertsGenerated: p.alerts.Count(),
		AlertsRetained:  p.alerts.Retained(),
		Source:          source,
		RealTime:        realTime,
	}
}

// LastUpdate is the wall time of the last processed tick, or zero.
func (p *Pipeline) LastUpdate() time.Time {
	ms := p.lastUpdate.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
