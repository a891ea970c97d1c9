package main

import (
	"quant-observer/src/alerts"
	"quant-observer/src/helpers"
	"quant-observer/src/interfaces"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/monitoring"
	"quant-observer/src/network"
	"quant-observer/src/pipeline"
	"quant-observer/src/storage"
)

// -----------------------------------------------------------------------------

// setupDatabase opens the journal selected by storage.db_type.
func setupDatabase(config *models.MConfig, appLogger *logger.Logger) (interfaces.IDatabase, error) {
	db, err := storage.NewDatabase(config, logger.NewLogger(config, "Journal"))
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		return nil, helpers.NewDatabaseError("failed to initialize journal", err)
	}
	appLogger.Info("Journal backend: %s", config.Storage.DBType)
	return db, nil
}

// -----------------------------------------------------------------------------

func setupNetwork(config *models.MConfig) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(config.Network, logger.NewLogger(config, "NetworkManager"))
}

// -----------------------------------------------------------------------------

// setupPipeline builds the core and registers the alert hooks that do not
// depend on the servers.
func setupPipeline(config *models.MConfig, metrics *monitoring.Metrics, journal *storage.JournalWriter) (*pipeline.Pipeline, error) {
	p, err := pipeline.NewPipeline(config.Pipeline, metrics, logger.NewLogger(config, "Pipeline"))
	if err != nil {
		return nil, err
	}

	alertLogger := logger.NewLogger(config, "Alerts")
	p.RegisterAlertCallback(logAlert(alertLogger))
	p.RegisterAlertCallback(journal.EnqueueAlert)
	return p, nil
}

// logAlert writes each alert at a log level matching its severity.
func logAlert(log *logger.Logger) alerts.AlertCallback {
	return func(a models.MAlert) error {
		switch a.Level {
		case models.AlertLevelCritical:
			log.Error("[%s] %s %s: %s", a.Level, a.Symbol, a.Kind, a.Message)
		case models.AlertLevelWarning:
			log.Warning("[%s] %s %s: %s", a.Level, a.Symbol, a.Kind, a.Message)
		default:
			log.Info("[%s] %s %s: %s", a.Level, a.Symbol, a.Kind, a.Message)
		}
		return nil
	}
}
