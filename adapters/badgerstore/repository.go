package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	"coinsleuth/internal/keylock"

	"github.com/dgraph-io/badger/v4"
)

// Repository implements ports.TableRepository over BadgerDB
type Repository struct {
	db     *badger.DB
	locks  keylock.Locker
	logger *internal.Logger
}

// Non-finite floats have no JSON form; they are stored as null
type rowDocument struct {
	Partition     string   `json:"partition"`
	Multiplicity  uint64   `json:"multiplicity"`
	ChiSquared    float64  `json:"chi_squared"`
	LogChiSquared *float64 `json:"log_chi_squared"`
	PValue        float64  `json:"p_value"`
}

type tableDocument struct {
	N    int           `json:"n"`
	Rows []rowDocument `json:"rows"`
}

type summaryRowDocument struct {
	N      int      `json:"n"`
	Mode   *float64 `json:"mode"`
	Min    *float64 `json:"min"`
	Median *float64 `json:"median"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"std_dev"`
}

type summaryDocument struct {
	Statistic string               `json:"statistic"`
	Rows      []summaryRowDocument `json:"rows"`
}

// Open opens the store described by cfg
func Open(cfg Config) (*Repository, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, core.NewStorageError("open badger", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Repository{db: db, logger: logger.WithComponent("BadgerStore")}, nil
}

// Close closes the database
func (r *Repository) Close() error {
	return r.db.Close()
}

// HasKey reports whether a key is persisted
func (r *Repository) HasKey(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, core.NewStorageError("has key", err)
	}
	return found, nil
}

// ListLengths scans the statistics key prefix and returns every N ascending
func (r *Repository) ListLengths(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var lengths []int
	prefix := []byte(stats.StatisticsPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n, err := stats.ParseStatisticsKey(string(it.Item().Key()))
			if err != nil {
				return core.NewInvariantError("malformed statistics key: %v", err)
			}
			lengths = append(lengths, n)
		}
		return nil
	})
	if err != nil {
		if core.IsInvariantViolation(err) {
			return nil, err
		}
		return nil, core.NewStorageError("list lengths", err)
	}

	sort.Ints(lengths)
	return lengths, nil
}

// LoadStatistics reads the statistics table for length n
func (r *Repository) LoadStatistics(ctx context.Context, n int) (*stats.Table, error) {
	key := stats.StatisticsKey(n)
	var doc tableDocument
	if err := r.get(ctx, key, &doc); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, key)
		}
		return nil, core.NewStorageError("load statistics", err)
	}

	rows := make([]stats.Row, len(doc.Rows))
	for i, row := range doc.Rows {
		rows[i] = stats.Row{
			Partition:     partition.ID(row.Partition),
			Multiplicity:  row.Multiplicity,
			ChiSquared:    row.ChiSquared,
			LogChiSquared: fromPointer(row.LogChiSquared, math.Inf(-1)),
			PValue:        row.PValue,
		}
	}
	return stats.NewTable(doc.N, rows), nil
}

// SaveStatistics stores a statistics table unless its key already exists
func (r *Repository) SaveStatistics(ctx context.Context, table *stats.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := table.Key()
	unlock := r.locks.Lock(key)
	defer unlock()

	doc := tableDocument{N: table.N, Rows: make([]rowDocument, len(table.Rows))}
	for i, row := range table.Rows {
		doc.Rows[i] = rowDocument{
			Partition:     string(row.Partition),
			Multiplicity:  row.Multiplicity,
			ChiSquared:    row.ChiSquared,
			LogChiSquared: toPointer(row.LogChiSquared),
			PValue:        row.PValue,
		}
	}
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	stored := false
	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		stored = true
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return core.NewStorageError("save statistics", err)
	}

	if stored {
		r.logger.Debug("persisted %s with %d rows", key, len(table.Rows))
	} else {
		r.logger.Debug("%s already persisted, keeping stored table", key)
	}
	return nil
}

// LoadSummary reads the summary table for a statistic
func (r *Repository) LoadSummary(ctx context.Context, statistic stats.Statistic) (*stats.SummaryTable, error) {
	key := stats.SummaryKey(statistic)
	var doc summaryDocument
	if err := r.get(ctx, key, &doc); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrSummaryNotFound, key)
		}
		return nil, core.NewStorageError("load summary", err)
	}

	nan := math.NaN()
	rows := make([]stats.SummaryRow, len(doc.Rows))
	for i, row := range doc.Rows {
		rows[i] = stats.SummaryRow{
			N:      row.N,
			Mode:   fromPointer(row.Mode, nan),
			Min:    fromPointer(row.Min, nan),
			Median: fromPointer(row.Median, nan),
			Max:    fromPointer(row.Max, nan),
			Mean:   fromPointer(row.Mean, nan),
			StdDev: fromPointer(row.StdDev, nan),
		}
	}
	return stats.NewSummaryTable(statistic, rows), nil
}

// SaveSummary replaces the summary table for its statistic
func (r *Repository) SaveSummary(ctx context.Context, summary *stats.SummaryTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := summary.Key()
	unlock := r.locks.Lock(key)
	defer unlock()

	doc := summaryDocument{Statistic: string(summary.Statistic), Rows: make([]summaryRowDocument, len(summary.Rows))}
	for i, row := range summary.Rows {
		doc.Rows[i] = summaryRowDocument{
			N:      row.N,
			Mode:   toPointer(row.Mode),
			Min:    toPointer(row.Min),
			Median: toPointer(row.Median),
			Max:    toPointer(row.Max),
			Mean:   toPointer(row.Mean),
			StdDev: toPointer(row.StdDev),
		}
	}
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	}); err != nil {
		return core.NewStorageError("save summary", err)
	}
	r.logger.Debug("persisted %s with %d rows", key, len(summary.Rows))
	return nil
}

func (r *Repository) get(ctx context.Context, key string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

func toPointer(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromPointer(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
