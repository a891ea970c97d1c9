package analysis

import (
	"sort"
	"time"

	"quant-observer/src/analysis/core"
	"quant-observer/src/helpers"
	"quant-observer/src/models"
)

// -----------------------------------------------------------------------------

// ParseWindow turns a window name such as "1m" or "15s" into a duration.
func ParseWindow(windowName string) (time.Duration, error) {
	d, err := time.ParseDuration(windowName)
	if err != nil {
		return 0, helpers.NewValidationError("window", "invalid window %q: %v", windowName, err)
	}
	if d < time.Second {
		return 0, helpers.NewValidationError("window", "window %q must be at least 1s", windowName)
	}
	return d, nil
}

// -----------------------------------------------------------------------------

// Resample groups the snapshot into epoch-aligned buckets of windowName and
// returns one candle per non-empty bucket, oldest first. Inside a bucket the
// ticks keep insertion order, so Open and Close follow arrival.
// PricePercentChange compares each close with the previous candle's close;
// the first candle compares with its own open.
func Resample(snapshot []models.MTick, windowName string) ([]models.MCandle, error) {
	window, err := ParseWindow(windowName)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return []models.MCandle{}, nil
	}

	windowMs := window.Milliseconds()

	// Resample into windows
	buckets := make(map[int64][]models.MTick)
	for _, t := range snapshot {
		start, _ := CalculateWindowBoundaries(t.Timestamp.UnixMilli(), windowMs)
		buckets[start] = append(buckets[start], t)
	}

	starts := make([]int64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool {
		return starts[i] < starts[j]
	})

	candles := make([]models.MCandle, 0, len(starts))
	var prevClose float64
	prevCloseSet := false

	for _, start := range starts {
		subset := buckets[start]
		prices := make([]float64, len(subset))
		volumes := make([]float64, len(subset))
		for i, t := range subset {
			prices[i] = t.Price
			volumes[i] = t.Volume
		}

		bar := core.ComputeOHLCV(prices, volumes)

		pctChange := core.CalculateChangePercent(bar.Close, bar.Open)
		if prevCloseSet {
			pctChange = core.CalculateChangePercent(bar.Close, prevClose)
		}

		candles = append(candles, models.MCandle{
			Symbol:             subset[len(subset)-1].Symbol,
			WindowName:         windowName,
			Open:               bar.Open,
			High:               bar.High,
			Low:                bar.Low,
			Close:              bar.Close,
			Volume:             bar.Volume,
			AvgPrice:           bar.AvgPrice,
			PricePercentChange: pctChange,
			StartTime:          start,
			EndTime:            start + windowMs,
			DataPoints:         len(subset),
		})

		prevClose = bar.Close
		prevCloseSet = true
	}

	return candles, nil
}

// -----------------------------------------------------------------------------

// CalculateWindowBoundaries returns the aligned [start, end) bucket holding ts.
func CalculateWindowBoundaries(ts int64, window int64) (int64, int64) {
	start := ts - (ts % window)
	if ts < 0 && ts%window != 0 {
		start -= window
	}
	return start, start + window
}
