package datasource

import (
	"strings"

	"quant-observer/src/data_source/binance"
	"quant-observer/src/data_source/mock"
	"quant-observer/src/helpers"
	"quant-observer/src/interfaces"
	"quant-observer/src/logger"
	"quant-observer/src/models"
)

// NewSource builds the tick source selected by data_source.type.
// The live source falls back to the simulated one when unreachable.
func NewSource(cfg *models.MConfig, log *logger.Logger) (interfaces.IDataSource, error) {
	newMock := func() interfaces.IDataSource {
		return mock.NewMockSource(cfg.DataSource, log.Named("MockSource"))
	}

	switch strings.ToLower(cfg.DataSource.Type) {
	case "", "mock":
		return newMock(), nil
	case "binance":
		src := binance.NewBinanceSource(cfg.DataSource, cfg.Network, log.Named("BinanceSource"))
		src.Fallback = newMock
		return src, nil
	default:
		return nil, helpers.NewConfigurationError("unknown data source type: "+cfg.DataSource.Type, nil)
	}
}
