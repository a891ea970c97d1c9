package models

import "time"

type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "INFO"
	AlertLevelWarning  AlertLevel = "WARNING"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

type AlertKind string

const (
	AlertKindPriceMove  AlertKind = "PRICE_MOVE"
	AlertKindVolatility AlertKind = "VOLATILITY"
)

// AlertKinds lists every kind the engine tracks, in evaluation order.
var AlertKinds = []AlertKind{AlertKindPriceMove, AlertKindVolatility}

type AlertState string

const (
	AlertStateArmed AlertState = "ARMED"
	AlertStateFired AlertState = "FIRED"
)

// -----------------------------------------------------------------------------

// MAlert is an immutable record of a threshold breach.
// Resolved is only set on the optional recovery notices.
type MAlert struct {
	ID            string     `json:"id"`
	Level         AlertLevel `json:"level"`
	Kind          AlertKind  `json:"kind"`
	Symbol        string     `json:"symbol"`
	Message       string     `json:"message"`
	ObservedValue float64    `json:"observed_value"`
	Threshold     float64    `json:"threshold"`
	Timestamp     time.Time  `json:"timestamp"`
	Resolved      bool       `json:"resolved"`
}

// MAlertState is the dashboard view of one kind's state machine.
type MAlertState struct {
	Kind  AlertKind  `json:"kind"`
	State AlertState `json:"state"`
	Level AlertLevel `json:"level,omitempty"`
	Since time.Time  `json:"since"`
}
