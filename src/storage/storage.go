package storage

import (
	"fmt"
	"quant-observer/src/helpers"
	"quant-observer/src/interfaces"
	"quant-observer/src/logger"
	"quant-observer/src/models"
)

var (
	_ interfaces.IDatabase = NopDB{}
	_ interfaces.IDatabase = (*AsyncSQLiteDB)(nil)
	_ interfaces.IDatabase = (*PostgresDB)(nil)
)

// -----------------------------------------------------------------------------

// NopDB is used when storage.db_type is "none". Every call succeeds.
type NopDB struct{}

func (NopDB) Initialize() error                   { return nil }
func (NopDB) SaveTicksBulk(_ []models.MTick) error { return nil }
func (NopDB) SaveAlert(_ models.MAlert) error      { return nil }
func (NopDB) CleanupOldData() error               { return nil }
func (NopDB) Close() error                        { return nil }

// -----------------------------------------------------------------------------

// NewDatabase picks the journal backend named by cfg.Storage.DBType.
// The returned journal is not initialized yet.
func NewDatabase(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.Storage.DBType {
	case "", "none":
		return NopDB{}, nil
	case "sqlite":
		return NewAsyncSQLiteDB(cfg, log)
	case "postgres":
		return NewPostgresDB(cfg, log)
	default:
		return nil, helpers.NewConfigurationError(
			fmt.Sprintf("unknown storage.db_type %q", cfg.Storage.DBType), nil)
	}
}
