package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"quant-observer/src/config"
	datasource "quant-observer/src/data_source"
	"quant-observer/src/grpc_control"
	"quant-observer/src/helpers"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/monitoring"
	"quant-observer/src/server"
	"quant-observer/src/storage"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)
	defer appLogger.Sync()

	if limit := helpers.MemoryLimitBytes(); limit > 0 {
		debug.SetMemoryLimit(limit)
		appLogger.Info("Memory limit set to %d MB", limit/(1024*1024))
	}

	// 4. Setup Components
	errs := helpers.NewErrorHandler(logger.NewLogger(conf.MConfig, "ErrorHandler"))
	metrics := monitoring.NewMetrics()

	db, err := setupDatabase(conf.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to set up journal: %v", err)
	}
	defer db.Close()

	journal := storage.NewJournalWriter(db, conf.Storage, conf.Network.MaxRetries, errs, metrics, logger.NewLogger(conf.MConfig, "JournalWriter"))

	p, err := setupPipeline(conf.MConfig, metrics, journal)
	if err != nil {
		appLogger.Critical("Invalid pipeline config: %v", err)
	}

	source, err := datasource.NewSource(conf.MConfig, logger.NewLogger(conf.MConfig, "DataSource"))
	if err != nil {
		appLogger.Critical("Failed to create data source: %v", err)
	}
	p.SetSource(source)

	srv := server.NewAPIServer(conf.MConfig, p, metrics, logger.NewLogger(conf.MConfig, "Server"))
	srv.ConfigPath = *configPath
	p.RegisterAlertCallback(srv.NotifyAlert)

	control := grpc_control.NewControlServer(conf.MConfig, logger.NewLogger(conf.MConfig, "ControlServer"))

	// Lifecycle Management
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal.Start(ctx)

	// 5. Bootstrap (warm-up from exchange history)
	warmUp(ctx, conf.MConfig, setupNetwork(conf.MConfig), p, journal, errs, appLogger)

	// 6. Start Servers
	startServers(srv, control, appLogger)

	// 7. Start Source
	var wg sync.WaitGroup
	ticks := make(chan models.MTick, 500)
	if err := source.Start(ctx, ticks, &wg); err != nil {
		appLogger.Critical("Failed to start data source: %v", err)
	}

	// 8. Run Loop (Blocking)
	staleAfter := 10 * time.Duration(conf.DataSource.IntervalMs) * time.Millisecond
	runDataLoop(ctx, ticks, p, journal, control, errs, staleAfter, appLogger)

	// 9. Shutdown
	appLogger.Info("Shutting down...")
	stop()
	source.Stop()
	wg.Wait()

	if err := srv.Stop(); err != nil {
		appLogger.Error("Server shutdown: %v", err)
	}
	control.Stop()
	journal.Close()

	stats := p.Stats()
	appLogger.Info("Shutdown complete. processed=%d rejected=%d alerts=%d journaled=%d",
		stats.TicksProcessed, stats.TicksRejected, stats.AlertsGenerated, journal.Written())
}
