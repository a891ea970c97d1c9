package utils

import "time"

// -----------------------------------------------------------------------------

// Defaults used when the configuration leaves a value unset.
const (
	DefaultBufferCapacity   = 5000
	DefaultAlertLogCapacity = 1000
	DefaultShortMAWindow    = 20
	DefaultLongMAWindow     = 50
	DefaultEMAWindow        = 20
	DefaultVolatilityWindow = 20

	DefaultPriceChangePct     = 0.02
	DefaultVolatilityWarning  = 0.02
	DefaultVolatilityCritical = 0.05

	DefaultRecentAlerts  = 10
	DefaultLatestTicks   = 50
	DefaultHistogramBins = 30

	DefaultSymbol     = "BTC/USD"
	DefaultStartPrice = 45000.0
	DefaultIntervalMs = 1000

	DefaultRetentionDays = 7
)

// -----------------------------------------------------------------------------

// Binance endpoints. The trade stream is lower-case "<base>usdt@trade".
const (
	BinanceWSURL   = "wss://stream.binance.com:9443/ws"
	BinanceRESTURL = "https://api.binance.com"
)

// -----------------------------------------------------------------------------

// MockFallbackDelay is how long a failing live source waits before handing
// over to the simulated feed.
const MockFallbackDelay = 2 * time.Second
