package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

// PostgresDB journals into a schema named after the service, so several
// observers can share one database.
type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	name := cfg.Name
	if name == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable name: %w", err)
		}
		name = strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
	}

	return &PostgresDB{
		Config: cfg,
		Schema: SchemaName(name),
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

// SchemaName lowercases name and maps anything outside [a-z0-9_] to '_'.
func SchemaName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "quant_observer"
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	statements := []struct {
		name  string
		query string
	}{
		{"ticks", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."ticks" (
				id BIGSERIAL PRIMARY KEY,
				symbol TEXT NOT NULL,
				timestamp BIGINT NOT NULL,
				price DOUBLE PRECISION NOT NULL,
				volume DOUBLE PRECISION NOT NULL DEFAULT 0
			)`, d.Schema)},
		{"idx_ticks_timestamp", fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_ticks_timestamp ON "%s"."ticks" (timestamp)`, d.Schema)},
		{"alerts", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."alerts" (
				id TEXT PRIMARY KEY,
				symbol TEXT NOT NULL,
				kind TEXT NOT NULL,
				level TEXT NOT NULL,
				message TEXT NOT NULL,
				observed_value DOUBLE PRECISION,
				threshold DOUBLE PRECISION,
				resolved BOOLEAN NOT NULL DEFAULT FALSE,
				timestamp BIGINT NOT NULL
			)`, d.Schema)},
		{"idx_alerts_timestamp", fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON "%s"."alerts" (timestamp)`, d.Schema)},
	}

	for _, s := range statements {
		if _, err := d.DB.Exec(s.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}

	d.Logger.Info("Postgres journal ready in schema %q", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveTicksBulk(ticks []models.MTick) error {
	if len(ticks) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."ticks" (symbol, timestamp, price, volume)
		VALUES ($1, $2, $3, $4)
	`, d.Schema)
	stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) SaveAlert(a models.MAlert) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."alerts" (id, symbol, kind, level, message, observed_value, threshold, resolved, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, d.Schema)
	_, err := d.DB.Exec(query,
		a.ID, a.Symbol, string(a.Kind), string(a.Level), a.Message,
		a.ObservedValue, a.Threshold, a.Resolved, a.Timestamp.UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := retentionCutoff(time.Now(), retentionDays)

	d.Logger.Info("Cleaning up journal rows older than %d days (timestamp < %d)", retentionDays, cutoff)

	for _, table := range []string{"ticks", "alerts"} {
		query := fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE timestamp < $1`, d.Schema, table)
		if _, err := d.DB.Exec(query, cutoff); err != nil {
			d.Logger.Error("Cleanup %s error: %v", table, err)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
