package main

import (
	"context"
	"strings"

	"quant-observer/src/data_source/binance"
	"quant-observer/src/helpers"
	"quant-observer/src/interfaces"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/pipeline"
	"quant-observer/src/storage"
)

// -----------------------------------------------------------------------------

// warmUp seeds the buffer with recent exchange trades so metrics are
// available from the first live tick. Failure only costs the warm-up.
func warmUp(
	ctx context.Context,
	config *models.MConfig,
	net interfaces.INetworkManager,
	p *pipeline.Pipeline,
	journal *storage.JournalWriter,
	errs *helpers.ErrorHandler,
	appLogger *logger.Logger,
) {
	if !strings.EqualFold(config.DataSource.Type, "binance") || config.DataSource.WarmupTrades <= 0 {
		return
	}

	appLogger.Info("Fetching %d recent trades for %s...", config.DataSource.WarmupTrades, config.DataSource.Symbol)
	ticks, err := binance.FetchRecentTrades(ctx, net, config.DataSource.RESTURL, config.DataSource.Symbol, config.DataSource.WarmupTrades)
	if err != nil {
		errs.Handle(err, "warm-up")
		return
	}

	accepted := p.Seed(ticks)
	for _, t := range ticks {
		journal.EnqueueTick(t)
	}
	appLogger.Info("Warm-up seeded %d/%d trades", accepted, len(ticks))
}
