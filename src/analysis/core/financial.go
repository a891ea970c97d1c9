package core

import (
	"math"

	"quant-observer/src/helpers"
)

// -----------------------------------------------------------------------------
// Returns
// -----------------------------------------------------------------------------

// LogReturns computes ln(p[i]/p[i-1]) for each consecutive pair.
// Fewer than two prices yields an empty slice.
func LogReturns(prices []float64) ([]float64, error) {
	return pairwise(prices, func(prev, cur float64) float64 {
		return math.Log(cur / prev)
	})
}

// SimpleReturns computes (p[i]-p[i-1])/p[i-1] for each consecutive pair.
// Fewer than two prices yields an empty slice.
func SimpleReturns(prices []float64) ([]float64, error) {
	return pairwise(prices, func(prev, cur float64) float64 {
		return (cur - prev) / prev
	})
}

func pairwise(prices []float64, fn func(prev, cur float64) float64) ([]float64, error) {
	if len(prices) < 2 {
		return []float64{}, nil
	}

	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev <= 0 || math.IsNaN(prev) {
			return nil, helpers.ErrUndefinedReturn
		}
		r := fn(prev, prices[i])
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, helpers.ErrUndefinedReturn
		}
		out[i-1] = r
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Volatility & moving averages
// -----------------------------------------------------------------------------

// Volatility is the sample standard deviation of the trailing window returns.
// It is unavailable with fewer than window returns or a window below 2.
func Volatility(returns []float64, window int) (float64, bool) {
	if window < 2 || len(returns) < window {
		return 0, false
	}
	_, std := CalculateMeanStd(returns[len(returns)-window:])
	if math.IsNaN(std) || math.IsInf(std, 0) {
		return 0, false
	}
	return std, true
}

// -----------------------------------------------------------------------------

// MovingAverage is the mean of the trailing window prices.
func MovingAverage(prices []float64, window int) (float64, bool) {
	if window < 1 || len(prices) < window {
		return 0, false
	}
	sum := 0.0
	for _, p := range prices[len(prices)-window:] {
		sum += p
	}
	return sum / float64(window), true
}

// MovingAverageSeries returns the rolling mean ending at each index from
// window-1 onwards, so the result has len(prices)-window+1 points.
func MovingAverageSeries(prices []float64, window int) ([]float64, bool) {
	if window < 1 || len(prices) < window {
		return nil, false
	}

	out := make([]float64, 0, len(prices)-window+1)
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= window {
			sum -= prices[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out, true
}

// -----------------------------------------------------------------------------

// ExponentialMovingAverage uses alpha = 2/(window+1), seeded with the simple
// average of the first window prices. The result has len(prices)-window+1
// points; the first one is the seed.
func ExponentialMovingAverage(prices []float64, window int) ([]float64, bool) {
	if window < 1 || len(prices) < window {
		return nil, false
	}

	alpha := 2.0 / float64(window+1)
	seed := 0.0
	for _, p := range prices[:window] {
		seed += p
	}
	seed /= float64(window)

	out := make([]float64, 0, len(prices)-window+1)
	out = append(out, seed)
	prev := seed
	for _, p := range prices[window:] {
		prev = alpha*p + (1-alpha)*prev
		out = append(out, prev)
	}
	return out, true
}

// -----------------------------------------------------------------------------
// Candles
// -----------------------------------------------------------------------------

// OHLCV holds the bar values of one bucket.
type OHLCV struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	AvgPrice float64
}

// ComputeOHLCV calculates OHLCV and AvgPrice from price/volume arrays.
// volumes may be shorter than prices; missing volumes count as zero.
func ComputeOHLCV(prices []float64, volumes []float64) OHLCV {
	if len(prices) == 0 {
		return OHLCV{}
	}

	bar := OHLCV{
		Open:  prices[0],
		Close: prices[len(prices)-1],
		High:  math.Inf(-1),
		Low:   math.Inf(1),
	}
	sumPrice := 0.0

	for i, p := range prices {
		if p > bar.High {
			bar.High = p
		}
		if p < bar.Low {
			bar.Low = p
		}
		if i < len(volumes) {
			bar.Volume += volumes[i]
		}
		sumPrice += p
	}

	bar.AvgPrice = sumPrice / float64(len(prices))
	return bar
}

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates the fractional change from previous.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous
}
