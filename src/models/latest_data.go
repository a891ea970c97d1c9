package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type              string             `json:"type"` // "INITIAL" or "UPDATE"
	Tick              *MTick             `json:"tick,omitempty"`
	Metrics           MMetricsSummary    `json:"metrics"`
	Alerts            []MAlert           `json:"alerts"`
	Timestamp         int64              `json:"timestamp"`
	ProcessingMetrics MProcessingMetrics `json:"processing_metrics"`
}

// MProcessResult is what the pipeline hands to its observers after a tick.
type MProcessResult struct {
	Tick              MTick
	Metrics           MMetricsSummary
	Alerts            []MAlert
	ProcessingMetrics MProcessingMetrics
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command    string `json:"command"`     // "subscribe" or "snapshot"
	AlertLimit int    `json:"alert_limit"` // alerts included in the reply
	TickLimit  int    `json:"tick_limit"`  // latest ticks included in the reply
}

// MSnapshotResponse answers a "snapshot" command.
type MSnapshotResponse struct {
	Type    string          `json:"type"` // "SNAPSHOT"
	Ticks   []MTick         `json:"ticks"`
	Metrics MMetricsSummary `json:"metrics"`
	Alerts  []MAlert        `json:"alerts"`
}

// MAlertNotice is pushed to websocket clients the moment an alert fires.
type MAlertNotice struct {
	Type  string `json:"type"` // "ALERT"
	Alert MAlert `json:"alert"`
}
