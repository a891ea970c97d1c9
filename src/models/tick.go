package models

import "time"

// MTick is one observed trade price for the instrument.
// Volume is informational and may be zero when the source does not report it.
type MTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MPriceRange is the min/max price over the retained window.
type MPriceRange struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}
