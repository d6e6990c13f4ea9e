package migration

import (
	"context"

	"coinsleuth/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the tables backing the statistics key space.
// Every statement is valid for both SQLite and PostgreSQL.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createStatisticsTables(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create statistics_tables table")
	}

	if err := r.createStatisticsRows(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create statistics_rows table")
	}

	if err := r.createSummaryTables(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create summary_tables table")
	}

	if err := r.createSummaryRows(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create summary_rows table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createStatisticsTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS statistics_tables (
			table_key VARCHAR(64) PRIMARY KEY,
			n INTEGER NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// log_chi_squared is NULL where the value is not finite
func (r *MigrationRunner) createStatisticsRows(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS statistics_rows (
			table_key VARCHAR(64) NOT NULL REFERENCES statistics_tables(table_key) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			partition_id TEXT NOT NULL,
			multiplicity BIGINT NOT NULL,
			chi_squared DOUBLE PRECISION NOT NULL,
			log_chi_squared DOUBLE PRECISION,
			p_value DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (table_key, position)
		)
	`)
	return err
}

func (r *MigrationRunner) createSummaryTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS summary_tables (
			table_key VARCHAR(64) PRIMARY KEY,
			statistic VARCHAR(32) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (r *MigrationRunner) createSummaryRows(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS summary_rows (
			table_key VARCHAR(64) NOT NULL REFERENCES summary_tables(table_key) ON DELETE CASCADE,
			n INTEGER NOT NULL,
			mode_value DOUBLE PRECISION,
			min_value DOUBLE PRECISION,
			median_value DOUBLE PRECISION,
			max_value DOUBLE PRECISION,
			mean_value DOUBLE PRECISION,
			std_dev DOUBLE PRECISION,
			PRIMARY KEY (table_key, n)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_statistics_rows_partition ON statistics_rows(table_key, partition_id)",
		"CREATE INDEX IF NOT EXISTS idx_statistics_tables_n ON statistics_tables(n)",
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "index statement %q", stmt)
		}
	}
	return nil
}
