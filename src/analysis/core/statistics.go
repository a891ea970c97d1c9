package core

import "math"

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and sample standard deviation (N-1).
// A single element has std 0.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, 0
	}

	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)-1))
	return mean, std
}

// -----------------------------------------------------------------------------

// Bin is one histogram bucket [Lower, Upper).
type Bin struct {
	Lower float64
	Upper float64
	Count int
}

// Histogram splits data into equal-width bins between its min and max.
// The last bin is closed so the maximum is counted. When every value is
// equal a single bin holds them all.
func Histogram(data []float64, bins int) []Bin {
	if len(data) == 0 || bins < 1 {
		return []Bin{}
	}

	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(data)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range data {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}
