package models

// MProcessingMetrics represents the cost of pushing one tick through the pipeline.
type MProcessingMetrics struct {
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	SampleCount           int     `json:"sample_count"`
	AlertsRaised          int     `json:"alerts_raised"`
}

// MStats are the lifetime counters shown on the dashboard.
type MStats struct {
	RecordsStored   int    `json:"records_stored"`
	BufferCapacity  int    `json:"buffer_capacity"`
	TicksProcessed  int64  `json:"ticks_processed"`
	TicksRejected   int64  `json:"ticks_rejected"`
	AlertsGenerated int64  `json:"alerts_generated"`
	AlertsRetained  int    `json:"alerts_retained"`
	Source          string `json:"source"`
	RealTime        bool   `json:"real_time"`
}
