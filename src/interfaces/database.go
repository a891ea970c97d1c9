package interfaces

import "quant-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase is the write-only journal of ticks and alerts.
// Nothing in it is read back into the in-memory pipeline.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveTicksBulk inserts a batch of raw ticks.
	SaveTicksBulk(ticks []models.MTick) error

	// -----------------------------------------------------------------------------

	// SaveAlert records one alert.
	SaveAlert(alert models.MAlert) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
