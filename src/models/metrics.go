package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// -----------------------------------------------------------------------------
// MMetricValue is a derived number that may be unavailable.
// The zero value is unavailable, so a summary field that was never
// computed can not be mistaken for a real 0.
// -----------------------------------------------------------------------------

type MMetricValue struct {
	value     float64
	available bool
}

// NewMetricValue wraps v. NaN and infinities are reported as unavailable.
func NewMetricValue(v float64) MMetricValue {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MMetricValue{}
	}
	return MMetricValue{value: v, available: true}
}

// UnavailableMetric returns the "not enough data" sentinel.
func UnavailableMetric() MMetricValue {
	return MMetricValue{}
}

// MetricFrom builds a value from the (v, ok) pair returned by the analytics core.
func MetricFrom(v float64, ok bool) MMetricValue {
	if !ok {
		return MMetricValue{}
	}
	return NewMetricValue(v)
}

// Get returns the value and whether it is available.
func (m MMetricValue) Get() (float64, bool) {
	return m.value, m.available
}

func (m MMetricValue) IsAvailable() bool {
	return m.available
}

func (m MMetricValue) String() string {
	if !m.available {
		return "n/a"
	}
	return strconv.FormatFloat(m.value, 'f', -1, 64)
}

// MarshalJSON encodes unavailable values as null.
func (m MMetricValue) MarshalJSON() ([]byte, error) {
	if !m.available {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

func (m *MMetricValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = MMetricValue{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = NewMetricValue(v)
	return nil
}

// -----------------------------------------------------------------------------

// MMetricsSummary is the "current metrics" view computed from one snapshot.
// It is never stored; every call recomputes it.
type MMetricsSummary struct {
	Symbol          string            `json:"symbol"`
	LatestPrice     MMetricValue      `json:"latest_price"`
	LatestTimestamp time.Time         `json:"latest_timestamp"`
	LogReturn       MMetricValue      `json:"log_return"`
	SimpleReturn    MMetricValue      `json:"simple_return"`
	PriceChangePct  MMetricValue      `json:"price_change_pct"`
	MeanReturn      MMetricValue      `json:"mean_return"`
	Volatility      MMetricValue      `json:"volatility"`
	SMAShort        MMetricValue      `json:"sma_short"`
	SMALong         MMetricValue      `json:"sma_long"`
	EMA             MMetricValue      `json:"ema"`
	SampleCount     int               `json:"sample_count"`
	Windows         MAnalyticsWindows `json:"windows"`
}

// MAnalyticsWindows records the window sizes a summary was computed with.
type MAnalyticsWindows struct {
	ShortMA    int `json:"short_ma"`
	LongMA     int `json:"long_ma"`
	EMA        int `json:"ema"`
	Volatility int `json:"volatility"`
}

// -----------------------------------------------------------------------------

// MSeriesPoint is one chart row: price plus the moving averages at that tick.
type MSeriesPoint struct {
	Timestamp time.Time    `json:"timestamp"`
	Price     float64      `json:"price"`
	SMAShort  MMetricValue `json:"sma_short"`
	SMALong   MMetricValue `json:"sma_long"`
	EMA       MMetricValue `json:"ema"`
}

type MAnalyticsSeries struct {
	Symbol  string            `json:"symbol"`
	Points  []MSeriesPoint    `json:"points"`
	Windows MAnalyticsWindows `json:"windows"`
}

// -----------------------------------------------------------------------------

// MHistogramBin counts simple returns (in percent) falling in [Lower, Upper).
// The last bin is closed on the right.
type MHistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

type MReturnDistribution struct {
	Bins  []MHistogramBin `json:"bins"`
	Count int             `json:"count"`
	Mean  MMetricValue    `json:"mean"`
	Std   MMetricValue    `json:"std"`
}
