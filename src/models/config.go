package models

// MConfig Structure
type MConfig struct {
	Name                 string            `yaml:"name"`
	Host                 string            `yaml:"host"`
	Port                 int               `yaml:"port"`
	LogLevel             string            `yaml:"log_level"`
	LogFormat            string            `yaml:"log_format"` // "json" or "console"
	GrpcHost             string            `yaml:"grpc_host"`
	GrpcPort             int               `yaml:"grpc_port"`
	PersistConfigChanges bool              `yaml:"persist_config_changes"`
	Storage              MStorageConfig    `yaml:"storage"`
	Network              MNetworkConfig    `yaml:"network"`
	DataSource           MDataSourceConfig `yaml:"data_source"`
	Pipeline             MPipelineConfig   `yaml:"pipeline"`
}

type MStorageConfig struct {
	DBType               string `yaml:"db_type"` // "sqlite", "postgres" or "none"
	DBPath               string `yaml:"db_path"`
	DBConnectionString   string `yaml:"db_connection_string"`
	DataRetentionDays    int    `yaml:"data_retention_days"`
	FlushIntervalSeconds int    `yaml:"flush_interval_seconds"`
	BatchSize            int    `yaml:"batch_size"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}

type MDataSourceConfig struct {
	Type         string  `yaml:"type"` // "mock" or "binance"
	Symbol       string  `yaml:"symbol"`
	IntervalMs   int     `yaml:"interval_ms"`
	StartPrice   float64 `yaml:"start_price"`
	WarmupTrades int     `yaml:"warmup_trades"`
	WSURL        string  `yaml:"ws_url"`
	RESTURL      string  `yaml:"rest_url"`
}

// -----------------------------------------------------------------------------
// Runtime-tunable pipeline settings. These are the only values that can be
// changed while the process runs; a new copy is handed to the core per tick.
// -----------------------------------------------------------------------------

type MPipelineConfig struct {
	Analytics MAnalyticsConfig `yaml:"analytics" json:"analytics"`
	Alerts    MAlertConfig     `yaml:"alerts" json:"alerts"`
}

type MAnalyticsConfig struct {
	BufferCapacity   int `yaml:"buffer_capacity" json:"buffer_capacity"`
	ShortMAWindow    int `yaml:"short_ma_window" json:"short_ma_window"`
	LongMAWindow     int `yaml:"long_ma_window" json:"long_ma_window"`
	EMAWindow        int `yaml:"ema_window" json:"ema_window"`
	VolatilityWindow int `yaml:"volatility_window" json:"volatility_window"`
}

type MAlertConfig struct {
	Thresholds   MThresholds `yaml:"thresholds" json:"thresholds"`
	LogCapacity  int         `yaml:"log_capacity" json:"log_capacity"`
	EmitResolved bool        `yaml:"emit_resolved" json:"emit_resolved"`
}

// MThresholds are compared against the metrics summary on every evaluation.
// PriceChangePct is a fraction: 0.02 means a 2% move between two ticks.
type MThresholds struct {
	PriceChangePct     float64 `yaml:"price_change_pct" json:"price_change_pct"`
	VolatilityWarning  float64 `yaml:"volatility_warning" json:"volatility_warning"`
	VolatilityCritical float64 `yaml:"volatility_critical" json:"volatility_critical"`
}
