package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"quant-observer/src/helpers"
	"quant-observer/src/models"
	"quant-observer/src/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g. QO_LOG_LEVEL.
const EnvPrefix = "QO"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// envOverrides lists the settings that can be changed without touching the
// YAML file. Empty values leave the file value in place.
type envOverrides struct {
	LogLevel           string  `envconfig:"LOG_LEVEL"`
	LogFormat          string  `envconfig:"LOG_FORMAT"`
	Host               string  `envconfig:"HOST"`
	Port               int     `envconfig:"PORT"`
	GrpcPort           int     `envconfig:"GRPC_PORT"`
	DBType             string  `envconfig:"DB_TYPE"`
	DBPath             string  `envconfig:"DB_PATH"`
	DBConnectionString string  `envconfig:"DB_CONNECTION_STRING"`
	SourceType         string  `envconfig:"SOURCE"`
	Symbol             string  `envconfig:"SYMBOL"`
	IntervalMs         int     `envconfig:"INTERVAL_MS"`
	BufferCapacity     int     `envconfig:"BUFFER_CAPACITY"`
	PriceChangePct     float64 `envconfig:"PRICE_CHANGE_PCT"`
	VolatilityWarning  float64 `envconfig:"VOLATILITY_WARNING"`
	VolatilityCritical float64 `envconfig:"VOLATILITY_CRITICAL"`
}

// -----------------------------------------------------------------------------

// NewConfig loads the YAML file, applies .env and QO_* overrides, fills
// defaults and validates the result.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Environment overrides
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	config.ApplyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Default returns a configuration built only from defaults.
func Default() *Config {
	c := &Config{MConfig: &models.MConfig{}}
	c.ApplyDefaults()
	return c
}

// DefaultPipeline returns the default analytics windows and thresholds.
func DefaultPipeline() models.MPipelineConfig {
	return models.MPipelineConfig{
		Analytics: models.MAnalyticsConfig{
			BufferCapacity:   utils.DefaultBufferCapacity,
			ShortMAWindow:    utils.DefaultShortMAWindow,
			LongMAWindow:     utils.DefaultLongMAWindow,
			EMAWindow:        utils.DefaultEMAWindow,
			VolatilityWindow: utils.DefaultVolatilityWindow,
		},
		Alerts: models.MAlertConfig{
			Thresholds: models.MThresholds{
				PriceChangePct:     utils.DefaultPriceChangePct,
				VolatilityWarning:  utils.DefaultVolatilityWarning,
				VolatilityCritical: utils.DefaultVolatilityCritical,
			},
			LogCapacity: utils.DefaultAlertLogCapacity,
		},
	}
}

// -----------------------------------------------------------------------------

// ApplyEnv loads a .env file from the working directory when present and
// copies every non-empty QO_* variable over the file values.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return helpers.NewConfigurationError("failed to load .env", err)
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return helpers.NewConfigurationError("failed to read environment overrides", err)
	}

	setString(&c.LogLevel, env.LogLevel)
	setString(&c.LogFormat, env.LogFormat)
	setString(&c.Host, env.Host)
	setInt(&c.Port, env.Port)
	setInt(&c.GrpcPort, env.GrpcPort)
	setString(&c.Storage.DBType, env.DBType)
	setString(&c.Storage.DBPath, env.DBPath)
	setString(&c.Storage.DBConnectionString, env.DBConnectionString)
	setString(&c.DataSource.Type, env.SourceType)
	setString(&c.DataSource.Symbol, env.Symbol)
	setInt(&c.DataSource.IntervalMs, env.IntervalMs)
	setInt(&c.Pipeline.Analytics.BufferCapacity, env.BufferCapacity)

	th := &c.Pipeline.Alerts.Thresholds
	setFloat(&th.PriceChangePct, env.PriceChangePct)
	setFloat(&th.VolatilityWarning, env.VolatilityWarning)
	setFloat(&th.VolatilityCritical, env.VolatilityCritical)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "quant-observer"
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.GrpcHost == "" {
		c.GrpcHost = "127.0.0.1"
	}
	if c.GrpcPort == 0 {
		c.GrpcPort = 50051
	}

	// Storage
	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/quant_observer.db"
	}
	if c.Storage.DataRetentionDays == 0 {
		c.Storage.DataRetentionDays = utils.DefaultRetentionDays
	}
	if c.Storage.FlushIntervalSeconds == 0 {
		c.Storage.FlushIntervalSeconds = 5
	}
	if c.Storage.BatchSize == 0 {
		c.Storage.BatchSize = 500
	}

	// Network
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}
	if c.Network.MaxRetries == 0 {
		c.Network.MaxRetries = 3
	}
	if c.Network.UserAgent == "" {
		c.Network.UserAgent = "quant-observer/1.0"
	}

	// DataSource
	ds := &c.DataSource
	if ds.Type == "" {
		ds.Type = "mock"
	}
	if ds.Symbol == "" {
		ds.Symbol = utils.DefaultSymbol
	}
	if ds.IntervalMs == 0 {
		ds.IntervalMs = utils.DefaultIntervalMs
	}
	if ds.StartPrice == 0 {
		ds.StartPrice = utils.DefaultStartPrice
	}
	if ds.WSURL == "" {
		ds.WSURL = utils.BinanceWSURL
	}
	if ds.RESTURL == "" {
		ds.RESTURL = utils.BinanceRESTURL
	}

	// Pipeline
	def := DefaultPipeline()
	a := &c.Pipeline.Analytics
	if a.BufferCapacity == 0 {
		a.BufferCapacity = def.Analytics.BufferCapacity
	}
	if a.ShortMAWindow == 0 {
		a.ShortMAWindow = def.Analytics.ShortMAWindow
	}
	if a.LongMAWindow == 0 {
		a.LongMAWindow = def.Analytics.LongMAWindow
	}
	if a.EMAWindow == 0 {
		a.EMAWindow = def.Analytics.EMAWindow
	}
	if a.VolatilityWindow == 0 {
		a.VolatilityWindow = def.Analytics.VolatilityWindow
	}

	al := &c.Pipeline.Alerts
	if al.LogCapacity == 0 {
		al.LogCapacity = def.Alerts.LogCapacity
	}
	if al.Thresholds.PriceChangePct == 0 {
		al.Thresholds.PriceChangePct = def.Alerts.Thresholds.PriceChangePct
	}
	if al.Thresholds.VolatilityWarning == 0 {
		al.Thresholds.VolatilityWarning = def.Alerts.Thresholds.VolatilityWarning
	}
	if al.Thresholds.VolatilityCritical == 0 {
		al.Thresholds.VolatilityCritical = def.Alerts.Thresholds.VolatilityCritical
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return helpers.NewValidationError("name", "application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return helpers.NewValidationError("host", "server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return helpers.NewValidationError("port", "invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort <= 1024 || c.GrpcPort > 65535 {
		return helpers.NewValidationError("grpc_port", "invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Storage
	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return helpers.NewValidationError("storage.db_path", "database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return helpers.NewValidationError("storage.db_connection_string", "connection string cannot be empty for postgres")
		}
	default:
		return helpers.NewValidationError("storage.db_type", "unknown database type %q", c.Storage.DBType)
	}
	if c.Storage.DataRetentionDays <= 0 {
		return helpers.NewValidationError("storage.data_retention_days", "data retention days must be greater than 0")
	}
	if c.Storage.BatchSize <= 0 {
		return helpers.NewValidationError("storage.batch_size", "batch size must be greater than 0")
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return helpers.NewValidationError("network.timeout", "request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return helpers.NewValidationError("network.retries", "max retries cannot be negative")
	}

	// DataSource
	switch strings.ToLower(c.DataSource.Type) {
	case "mock", "binance":
	default:
		return helpers.NewValidationError("data_source.type", "unknown data source %q (mock or binance)", c.DataSource.Type)
	}
	if c.DataSource.Symbol == "" {
		return helpers.NewValidationError("data_source.symbol", "symbol cannot be empty")
	}
	if c.DataSource.IntervalMs <= 0 {
		return helpers.NewValidationError("data_source.interval_ms", "update interval must be greater than 0")
	}
	if c.DataSource.StartPrice <= 0 {
		return helpers.NewValidationError("data_source.start_price", "start price must be positive")
	}
	if c.DataSource.WarmupTrades < 0 || c.DataSource.WarmupTrades > 1000 {
		return helpers.NewValidationError("data_source.warmup_trades", "warmup trades must be between 0 and 1000")
	}

	return ValidatePipeline(c.Pipeline)
}

// -----------------------------------------------------------------------------

// ValidatePipeline checks the runtime-tunable part of the configuration.
// It is also used on live updates, before anything is applied.
func ValidatePipeline(p models.MPipelineConfig) error {
	a := p.Analytics
	if a.BufferCapacity < 1 {
		return helpers.NewValidationError("analytics.buffer_capacity", "buffer capacity must be at least 1, got %d", a.BufferCapacity)
	}
	windows := []struct {
		field string
		value int
	}{
		{"analytics.short_ma_window", a.ShortMAWindow},
		{"analytics.long_ma_window", a.LongMAWindow},
		{"analytics.ema_window", a.EMAWindow},
		{"analytics.volatility_window", a.VolatilityWindow},
	}
	for _, w := range windows {
		if w.value < 2 {
			return helpers.NewValidationError(w.field, "window must be at least 2, got %d", w.value)
		}
	}

	al := p.Alerts
	if al.LogCapacity < 1 {
		return helpers.NewValidationError("alerts.log_capacity", "alert log capacity must be at least 1, got %d", al.LogCapacity)
	}
	th := al.Thresholds
	if th.PriceChangePct <= 0 {
		return helpers.NewValidationError("alerts.thresholds.price_change_pct", "price change threshold must be positive")
	}
	if th.VolatilityWarning <= 0 {
		return helpers.NewValidationError("alerts.thresholds.volatility_warning", "volatility warning threshold must be positive")
	}
	if th.VolatilityCritical <= th.VolatilityWarning {
		return helpers.NewValidationError("alerts.thresholds.volatility_critical",
			"volatility critical (%v) must be greater than warning (%v)", th.VolatilityCritical, th.VolatilityWarning)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
