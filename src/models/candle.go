package models

// MCandle is an OHLCV bar built from the ticks of one time bucket.
type MCandle struct {
	Symbol             string  `json:"symbol"`
	WindowName         string  `json:"window_name"` // e.g. "1m", "5m"
	Open               float64 `json:"open"`
	High               float64 `json:"high"`
	Low                float64 `json:"low"`
	Close              float64 `json:"close"`
	Volume             float64 `json:"volume"`
	AvgPrice           float64 `json:"avg_price"`
	PricePercentChange float64 `json:"price_percent_change"`
	StartTime          int64   `json:"start_time"`
	EndTime            int64   `json:"end_time"`
	DataPoints         int     `json:"data_points"`
}
