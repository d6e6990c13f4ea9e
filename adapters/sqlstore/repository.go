// Package sqlstore persists statistics and summary tables through sqlx,
// backed by a SQLite file by default or by PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"

	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	"coinsleuth/internal/config"
	"coinsleuth/internal/keylock"
	"coinsleuth/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Repository implements ports.TableRepository over a SQL database
type Repository struct {
	db     *sqlx.DB
	locks  keylock.Locker
	logger *internal.Logger
}

// statisticsRow is the database shape of one statistics table row
type statisticsRow struct {
	PartitionID   string          `db:"partition_id"`
	Multiplicity  int64           `db:"multiplicity"`
	ChiSquared    float64         `db:"chi_squared"`
	LogChiSquared sql.NullFloat64 `db:"log_chi_squared"`
	PValue        float64         `db:"p_value"`
}

// summaryRow is the database shape of one summary table row
type summaryRow struct {
	N      int             `db:"n"`
	Mode   sql.NullFloat64 `db:"mode_value"`
	Min    sql.NullFloat64 `db:"min_value"`
	Median sql.NullFloat64 `db:"median_value"`
	Max    sql.NullFloat64 `db:"max_value"`
	Mean   sql.NullFloat64 `db:"mean_value"`
	StdDev sql.NullFloat64 `db:"std_dev"`
}

// Open connects to the configured backend and runs migrations
func Open(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Repository, error) {
	driver, dsn, err := DataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, core.NewStorageError("connect "+driver, err)
	}
	if driver == "sqlite3" {
		// one writer at a time keeps SQLite from returning SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, core.NewStorageError("migrate", err)
	}

	return New(db, logger), nil
}

// DataSource resolves the driver name and DSN for the configured backend
func DataSource(cfg *config.Config) (string, string, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		return "postgres", cfg.Database.URL, nil
	case config.BackendSQLite, "":
		if err := os.MkdirAll(cfg.Storage.Location, 0o755); err != nil {
			return "", "", core.NewStorageError("create storage location", err)
		}
		return "sqlite3", cfg.Storage.SQLitePath() + "?_foreign_keys=on&_busy_timeout=5000", nil
	}
	return "", "", fmt.Errorf("%w: backend %q is not a SQL backend", core.ErrInvalidInput, cfg.Storage.Backend)
}

// New wraps an already migrated database
func New(db *sqlx.DB, logger *internal.Logger) *Repository {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Repository{db: db, logger: logger.WithComponent("SQLStore")}
}

// DB exposes the underlying connection for health checks
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// HasKey reports whether a statistics or summary key is persisted
func (r *Repository) HasKey(ctx context.Context, key string) (bool, error) {
	var count int
	query := r.db.Rebind(`
		SELECT (SELECT COUNT(1) FROM statistics_tables WHERE table_key = ?)
		     + (SELECT COUNT(1) FROM summary_tables WHERE table_key = ?)`)
	if err := r.db.GetContext(ctx, &count, query, key, key); err != nil {
		return false, core.NewStorageError("has key", err)
	}
	return count > 0, nil
}

// ListLengths returns every N with a persisted statistics table, ascending
func (r *Repository) ListLengths(ctx context.Context) ([]int, error) {
	var lengths []int
	if err := r.db.SelectContext(ctx, &lengths, `SELECT n FROM statistics_tables ORDER BY n`); err != nil {
		return nil, core.NewStorageError("list lengths", err)
	}
	return lengths, nil
}

// LoadStatistics reads the statistics table for length n in table order
func (r *Repository) LoadStatistics(ctx context.Context, n int) (*stats.Table, error) {
	key := stats.StatisticsKey(n)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, core.NewStorageError("begin load statistics", err)
	}
	defer tx.Rollback()

	var stored int
	err = tx.GetContext(ctx, &stored, tx.Rebind(`SELECT n FROM statistics_tables WHERE table_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, key)
	}
	if err != nil {
		return nil, core.NewStorageError("load statistics header", err)
	}

	var dbRows []statisticsRow
	err = tx.SelectContext(ctx, &dbRows, tx.Rebind(`
		SELECT partition_id, multiplicity, chi_squared, log_chi_squared, p_value
		FROM statistics_rows
		WHERE table_key = ?
		ORDER BY position`), key)
	if err != nil {
		return nil, core.NewStorageError("load statistics rows", err)
	}

	rows := make([]stats.Row, len(dbRows))
	for i, row := range dbRows {
		rows[i] = stats.Row{
			Partition:     partition.ID(row.PartitionID),
			Multiplicity:  uint64(row.Multiplicity),
			ChiSquared:    row.ChiSquared,
			LogChiSquared: floatOr(row.LogChiSquared, math.Inf(-1)),
			PValue:        row.PValue,
		}
	}

	return stats.NewTable(stored, rows), nil
}

// SaveStatistics inserts a statistics table unless its key already exists
func (r *Repository) SaveStatistics(ctx context.Context, table *stats.Table) error {
	key := table.Key()
	unlock := r.locks.Lock(key)
	defer unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin save statistics", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(1) FROM statistics_tables WHERE table_key = ?`), key); err != nil {
		return core.NewStorageError("check statistics key", err)
	}
	if count > 0 {
		r.logger.Debug("%s already persisted, keeping stored table", key)
		return nil
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO statistics_tables (table_key, n) VALUES (?, ?)`), key, table.N); err != nil {
		return core.NewStorageError("insert statistics header", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO statistics_rows (table_key, position, partition_id, multiplicity, chi_squared, log_chi_squared, p_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return core.NewStorageError("prepare statistics rows", err)
	}
	defer stmt.Close()

	for i, row := range table.Rows {
		if row.Multiplicity > math.MaxInt64 {
			return core.NewInvariantError("multiplicity of %s in %s exceeds int64", row.Partition, key)
		}
		if _, err := stmt.ExecContext(ctx, key, i, string(row.Partition), int64(row.Multiplicity),
			row.ChiSquared, nullable(row.LogChiSquared), row.PValue); err != nil {
			return core.NewStorageError("insert statistics row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit statistics", err)
	}

	r.logger.Debug("persisted %s with %d rows", key, len(table.Rows))
	return nil
}

// LoadSummary reads the summary table for a statistic
func (r *Repository) LoadSummary(ctx context.Context, statistic stats.Statistic) (*stats.SummaryTable, error) {
	key := stats.SummaryKey(statistic)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, core.NewStorageError("begin load summary", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(1) FROM summary_tables WHERE table_key = ?`), key); err != nil {
		return nil, core.NewStorageError("load summary header", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrSummaryNotFound, key)
	}

	var dbRows []summaryRow
	err = tx.SelectContext(ctx, &dbRows, tx.Rebind(`
		SELECT n, mode_value, min_value, median_value, max_value, mean_value, std_dev
		FROM summary_rows
		WHERE table_key = ?
		ORDER BY n`), key)
	if err != nil {
		return nil, core.NewStorageError("load summary rows", err)
	}

	rows := make([]stats.SummaryRow, len(dbRows))
	for i, row := range dbRows {
		nan := math.NaN()
		rows[i] = stats.SummaryRow{
			N:      row.N,
			Mode:   floatOr(row.Mode, nan),
			Min:    floatOr(row.Min, nan),
			Median: floatOr(row.Median, nan),
			Max:    floatOr(row.Max, nan),
			Mean:   floatOr(row.Mean, nan),
			StdDev: floatOr(row.StdDev, nan),
		}
	}

	return stats.NewSummaryTable(statistic, rows), nil
}

// SaveSummary replaces the summary table for its statistic
func (r *Repository) SaveSummary(ctx context.Context, summary *stats.SummaryTable) error {
	key := summary.Key()
	unlock := r.locks.Lock(key)
	defer unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin save summary", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM summary_rows WHERE table_key = ?`), key); err != nil {
		return core.NewStorageError("clear summary rows", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM summary_tables WHERE table_key = ?`), key); err != nil {
		return core.NewStorageError("clear summary header", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO summary_tables (table_key, statistic) VALUES (?, ?)`),
		key, string(summary.Statistic)); err != nil {
		return core.NewStorageError("insert summary header", err)
	}

	for _, row := range summary.Rows {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO summary_rows (table_key, n, mode_value, min_value, median_value, max_value, mean_value, std_dev)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			key, row.N, nullable(row.Mode), nullable(row.Min), nullable(row.Median),
			nullable(row.Max), nullable(row.Mean), nullable(row.StdDev))
		if err != nil {
			return core.NewStorageError("insert summary row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit summary", err)
	}

	r.logger.Debug("persisted %s with %d rows", key, len(summary.Rows))
	return nil
}

// nullable stores non-finite floats as NULL
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOr(v sql.NullFloat64, fallback float64) float64 {
	if !v.Valid {
		return fallback
	}
	return v.Float64
}
