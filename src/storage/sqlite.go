package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite batch constants
const (
	sqliteMaxVars   = 32000
	tickParams      = 4
	sqliteBatchSize = sqliteMaxVars / tickParams
)

// -----------------------------------------------------------------------------

// AsyncSQLiteDB journals ticks and alerts into a local SQLite file.
type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// SQLite types: INTEGER for unix millis, REAL for float64, TEXT for string
	statements := []struct {
		name  string
		query string
	}{
		{"ticks", `
			CREATE TABLE IF NOT EXISTS ticks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				symbol TEXT NOT NULL,
				timestamp INTEGER NOT NULL,
				price REAL NOT NULL,
				volume REAL NOT NULL DEFAULT 0
			);`},
		{"idx_ticks_timestamp", `CREATE INDEX IF NOT EXISTS idx_ticks_timestamp ON ticks (timestamp);`},
		{"alerts", `
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				symbol TEXT NOT NULL,
				kind TEXT NOT NULL,
				level TEXT NOT NULL,
				message TEXT NOT NULL,
				observed_value REAL,
				threshold REAL,
				resolved INTEGER NOT NULL DEFAULT 0,
				timestamp INTEGER NOT NULL
			);`},
		{"idx_alerts_timestamp", `CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts (timestamp);`},
	}

	for _, s := range statements {
		if _, err := d.DB.Exec(s.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}

	d.Logger.Info("SQLite journal ready at %s", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveTicksBulk(ticks []models.MTick) error {
	if len(ticks) == 0 {
		return nil
	}

	for start := 0; start < len(ticks); start += sqliteBatchSize {
		end := start + sqliteBatchSize
		if end > len(ticks) {
			end = len(ticks)
		}
		if err := d.saveTickChunk(ticks[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) saveTickChunk(ticks []models.MTick) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO ticks (symbol, timestamp, price, volume) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range ticks {
		if _, err := stmt.Exec(t.Symbol, t.Timestamp.UnixMilli(), t.Price, t.Volume); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveAlert(a models.MAlert) error {
	_, err := d.DB.Exec(`
		INSERT OR REPLACE INTO alerts (id, symbol, kind, level, message, observed_value, threshold, resolved, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Symbol, string(a.Kind), string(a.Level), a.Message,
		a.ObservedValue, a.Threshold, a.Resolved, a.Timestamp.UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := retentionCutoff(time.Now(), retentionDays)

	d.Logger.Info("Cleaning up journal rows older than %d days (timestamp < %d)", retentionDays, cutoff)

	for _, table := range []string{"ticks", "alerts"} {
		if _, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", table), cutoff); err != nil {
			return fmt.Errorf("cleanup %s: %w", table, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

// retentionCutoff is the unix-millis boundary below which rows are dropped.
func retentionCutoff(now time.Time, retentionDays int) int64 {
	return now.UTC().AddDate(0, 0, -retentionDays).UnixMilli()
}
