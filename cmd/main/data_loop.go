package main

import (
	"context"
	"time"

	"quant-observer/src/grpc_control"
	"quant-observer/src/helpers"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/pipeline"
	"quant-observer/src/storage"
)

// minStaleAfter bounds how long the pipeline may go without a tick before
// the health service reports NOT_SERVING.
const minStaleAfter = 30 * time.Second

// -----------------------------------------------------------------------------

// runDataLoop feeds every tick from the source through the pipeline until
// ctx is cancelled or the source closes the channel.
func runDataLoop(
	ctx context.Context,
	ticks <-chan models.MTick,
	p *pipeline.Pipeline,
	journal *storage.JournalWriter,
	control *grpc_control.ControlServer,
	errs *helpers.ErrorHandler,
	staleAfter time.Duration,
	appLogger *logger.Logger,
) {
	if staleAfter < minStaleAfter {
		staleAfter = minStaleAfter
	}
	watchdog := time.NewTicker(staleAfter / 2)
	defer watchdog.Stop()

	lastTick := time.Now()
	appLogger.Info("Starting data loop...")

	for {
		select {
		case tick, ok := <-ticks:
			if !ok {
				appLogger.Info("Data source closed channel.")
				control.SetServing(false)
				return
			}

			result, err := p.ProcessTick(tick)
			if err != nil {
				errs.Handle(err, "pipeline")
				continue
			}
			lastTick = time.Now()
			journal.EnqueueTick(tick)
			control.SetServing(true)

			if len(result.Alerts) > 0 {
				appLogger.Debug("Tick %.2f raised %d alert(s)", tick.Price, len(result.Alerts))
			}

		case <-watchdog.C:
			if time.Since(lastTick) > staleAfter {
				if control.Serving() {
					appLogger.Warning("No tick for %s, marking pipeline NOT_SERVING", time.Since(lastTick).Round(time.Second))
				}
				control.SetServing(false)
			}

		case <-ctx.Done():
			control.SetServing(false)
			return
		}
	}
}
