package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"coinsleuth/adapters/stats/runlength"
	"coinsleuth/domain/core"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	"coinsleuth/internal/config"
	"coinsleuth/internal/metrics"
	"coinsleuth/ports"

	"golang.org/x/sync/singleflight"
)

// StoreConfig controls the tiers of the statistics store
type StoreConfig struct {
	EnablePersistence     bool
	EnableInMemoryCache   bool
	StorageLocation       string
	StorageFileName       string
	Backend               string
	TolerateStorageErrors bool
}

// StoreConfigFrom maps the application storage settings onto a StoreConfig
func StoreConfigFrom(cfg config.StorageConfig) StoreConfig {
	return StoreConfig{
		EnablePersistence:     cfg.EnablePersistence,
		EnableInMemoryCache:   cfg.EnableInMemoryCache,
		StorageLocation:       cfg.Location,
		StorageFileName:       cfg.FileName,
		Backend:               cfg.Backend,
		TolerateStorageErrors: cfg.TolerateErrors,
	}
}

// StatisticsStore serves statistics and summary tables from three tiers:
// process memory, the persistent repository, and fresh computation.
// Cached tables are written once and never mutated.
type StatisticsStore struct {
	cfg       StoreConfig
	repo      ports.TableRepository
	tables    sync.Map // int -> *stats.Table
	summaries sync.Map // stats.Statistic -> *stats.SummaryTable
	builds    singleflight.Group
	calculate func(ctx context.Context, n int) (*stats.Table, error)
	logger    *internal.Logger
}

// NewStatisticsStore creates a store. repo may be nil only when persistence is disabled.
func NewStatisticsStore(cfg StoreConfig, repo ports.TableRepository, logger *internal.Logger) (*StatisticsStore, error) {
	if cfg.EnablePersistence && repo == nil {
		return nil, fmt.Errorf("%w: persistence enabled without a repository", core.ErrStorageUnavailable)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &StatisticsStore{
		cfg:       cfg,
		repo:      repo,
		calculate: runlength.Calculate,
		logger:    logger.WithComponent("StatisticsStore"),
	}, nil
}

// Config returns the store configuration
func (s *StatisticsStore) Config() StoreConfig {
	return s.cfg
}

// Close releases the repository
func (s *StatisticsStore) Close() error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Close()
}

// ============================================================================
// STATISTICS TABLES
// ============================================================================

// GetTable returns the statistics table for length n, building and persisting
// it when no tier holds it. Concurrent requests for the same n share one build.
func (s *StatisticsStore) GetTable(ctx context.Context, n int) (*stats.Table, error) {
	if err := runlength.ValidateLength(n); err != nil {
		return nil, err
	}

	if table, ok := s.cached(n); ok {
		metrics.RecordLookup(metrics.TierMemory)
		return table, nil
	}

	v, err, _ := s.builds.Do(strconv.Itoa(n), func() (interface{}, error) {
		if table, ok := s.cached(n); ok {
			metrics.RecordLookup(metrics.TierMemory)
			return table, nil
		}

		table, err := s.loadPersisted(ctx, n)
		if err != nil {
			return nil, err
		}
		if table != nil {
			metrics.RecordLookup(metrics.TierPersistent)
			return s.remember(table), nil
		}

		return s.build(ctx, n)
	})
	if err != nil {
		return nil, err
	}
	return v.(*stats.Table), nil
}

// loadPersisted returns nil without error when the repository has no table for n
func (s *StatisticsStore) loadPersisted(ctx context.Context, n int) (*stats.Table, error) {
	if !s.cfg.EnablePersistence {
		return nil, nil
	}

	table, err := s.repo.LoadStatistics(ctx, n)
	switch {
	case err == nil:
		s.logger.Debug("loaded %s from storage", table.Key())
		return table, nil
	case core.IsNotFoundError(err):
		return nil, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}

	metrics.RecordStorageError("load_statistics")
	if s.cfg.TolerateStorageErrors {
		s.logger.Warn("loading %s failed, computing instead: %v", stats.StatisticsKey(n), err)
		return nil, nil
	}
	return nil, err
}

func (s *StatisticsStore) build(ctx context.Context, n int) (*stats.Table, error) {
	s.logger.Info("building statistics table for N=%d", n)
	start := time.Now()

	table, err := s.calculate(ctx, n)
	if err != nil {
		return nil, err
	}
	metrics.ObserveBuild(start)
	metrics.RecordLookup(metrics.TierComputed)
	s.logger.Debug("built %s with %d rows in %s", table.Key(), table.Len(), time.Since(start))

	if err := s.persist(ctx, table); err != nil {
		return nil, err
	}

	table = s.remember(table)
	s.invalidateSummaries()
	return table, nil
}

func (s *StatisticsStore) persist(ctx context.Context, table *stats.Table) error {
	if !s.cfg.EnablePersistence {
		return nil
	}
	if err := s.repo.SaveStatistics(ctx, table); err != nil {
		metrics.RecordStorageError("save_statistics")
		if s.cfg.TolerateStorageErrors {
			s.logger.Warn("persisting %s failed, keeping computed table: %v", table.Key(), err)
			return nil
		}
		return err
	}
	return nil
}

func (s *StatisticsStore) cached(n int) (*stats.Table, bool) {
	if !s.cfg.EnableInMemoryCache {
		return nil, false
	}
	v, ok := s.tables.Load(n)
	if !ok {
		return nil, false
	}
	return v.(*stats.Table), true
}

// remember caches a table unless one is already cached, returning the cached one
func (s *StatisticsStore) remember(table *stats.Table) *stats.Table {
	if !s.cfg.EnableInMemoryCache {
		return table
	}
	actual, _ := s.tables.LoadOrStore(table.N, table)
	return actual.(*stats.Table)
}

// HasTable reports whether any non-computing tier holds the table for n
func (s *StatisticsStore) HasTable(ctx context.Context, n int) (bool, error) {
	if _, ok := s.cached(n); ok {
		return true, nil
	}
	if !s.cfg.EnablePersistence {
		return false, nil
	}
	return s.repo.HasKey(ctx, stats.StatisticsKey(n))
}

// PutTable verifies and stores an externally built table. An existing
// persisted table for the same N is kept.
func (s *StatisticsStore) PutTable(ctx context.Context, table *stats.Table) error {
	if err := runlength.Verify(table); err != nil {
		return err
	}
	if err := s.persist(ctx, table); err != nil {
		return err
	}
	if _, loaded := s.tables.Load(table.N); !loaded {
		s.remember(table)
		s.invalidateSummaries()
	}
	return nil
}

// CachedLengths returns every N held in memory, ascending
func (s *StatisticsStore) CachedLengths() []int {
	var lengths []int
	s.tables.Range(func(key, _ interface{}) bool {
		lengths = append(lengths, key.(int))
		return true
	})
	sort.Ints(lengths)
	return lengths
}

// Lengths returns every N the store can serve without computing
func (s *StatisticsStore) Lengths(ctx context.Context) ([]int, error) {
	if !s.cfg.EnablePersistence {
		return s.CachedLengths(), nil
	}
	lengths, err := s.repo.ListLengths(ctx)
	if err != nil {
		metrics.RecordStorageError("list_lengths")
		if s.cfg.TolerateStorageErrors {
			s.logger.Warn("listing persisted lengths failed, using memory: %v", err)
			return s.CachedLengths(), nil
		}
		return nil, err
	}
	return lengths, nil
}

// Preload reads every persisted table into memory and returns how many were loaded
func (s *StatisticsStore) Preload(ctx context.Context) (int, error) {
	if !s.cfg.EnablePersistence || !s.cfg.EnableInMemoryCache {
		return 0, nil
	}
	lengths, err := s.repo.ListLengths(ctx)
	if err != nil {
		return 0, err
	}
	for _, n := range lengths {
		if _, err := s.GetTable(ctx, n); err != nil {
			return 0, fmt.Errorf("preload N=%d: %w", n, err)
		}
	}
	s.logger.Info("preloaded %d statistics tables", len(lengths))
	return len(lengths), nil
}

// ============================================================================
// SUMMARY TABLES
// ============================================================================

// GetSummary returns the summary table of a statistic over every known N.
// A persisted summary that misses a known N is rebuilt and replaced.
func (s *StatisticsStore) GetSummary(ctx context.Context, statistic stats.Statistic) (*stats.SummaryTable, error) {
	if _, err := stats.ParseStatistic(string(statistic)); err != nil {
		return nil, err
	}

	if v, ok := s.summaries.Load(statistic); ok && s.cfg.EnableInMemoryCache {
		metrics.RecordLookup(metrics.TierMemory)
		return v.(*stats.SummaryTable), nil
	}

	v, err, _ := s.builds.Do(stats.SummaryKey(statistic), func() (interface{}, error) {
		lengths, err := s.Lengths(ctx)
		if err != nil {
			return nil, err
		}

		summary, err := s.loadSummary(ctx, statistic)
		if err != nil {
			return nil, err
		}
		if summary != nil && summary.Covers(lengths) {
			metrics.RecordLookup(metrics.TierPersistent)
			s.rememberSummary(summary)
			return summary, nil
		}
		if summary != nil {
			s.logger.Info("%s is missing lengths, rebuilding", summary.Key())
		}

		return s.buildSummary(ctx, statistic, lengths)
	})
	if err != nil {
		return nil, err
	}
	return v.(*stats.SummaryTable), nil
}

func (s *StatisticsStore) loadSummary(ctx context.Context, statistic stats.Statistic) (*stats.SummaryTable, error) {
	if !s.cfg.EnablePersistence {
		return nil, nil
	}
	summary, err := s.repo.LoadSummary(ctx, statistic)
	switch {
	case err == nil:
		return summary, nil
	case core.IsNotFoundError(err):
		return nil, nil
	}

	metrics.RecordStorageError("load_summary")
	if s.cfg.TolerateStorageErrors {
		s.logger.Warn("loading %s failed, rebuilding: %v", stats.SummaryKey(statistic), err)
		return nil, nil
	}
	return nil, err
}

func (s *StatisticsStore) buildSummary(ctx context.Context, statistic stats.Statistic, lengths []int) (*stats.SummaryTable, error) {
	tables := make([]*stats.Table, 0, len(lengths))
	for _, n := range lengths {
		table, err := s.GetTable(ctx, n)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	summary := runlength.SummarizeAll(tables, statistic)
	metrics.RecordLookup(metrics.TierComputed)
	s.logger.Info("built %s over %d lengths", summary.Key(), len(lengths))

	if s.cfg.EnablePersistence {
		if err := s.repo.SaveSummary(ctx, summary); err != nil {
			metrics.RecordStorageError("save_summary")
			if !s.cfg.TolerateStorageErrors {
				return nil, err
			}
			s.logger.Warn("persisting %s failed, keeping computed summary: %v", summary.Key(), err)
		}
	}

	s.rememberSummary(summary)
	return summary, nil
}

func (s *StatisticsStore) rememberSummary(summary *stats.SummaryTable) {
	if s.cfg.EnableInMemoryCache {
		s.summaries.Store(summary.Statistic, summary)
	}
}

func (s *StatisticsStore) invalidateSummaries() {
	s.summaries.Clear()
}

// RebuildSummaries regenerates and persists the summary of every statistic
func (s *StatisticsStore) RebuildSummaries(ctx context.Context) ([]*stats.SummaryTable, error) {
	lengths, err := s.Lengths(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*stats.SummaryTable, 0, len(stats.Statistics))
	for _, statistic := range stats.Statistics {
		summary, err := s.buildSummary(ctx, statistic, lengths)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", statistic, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// SummaryFor returns the population summary of a statistic at length n.
// When the summary table has no row for n, the row is computed from the table for n.
func (s *StatisticsStore) SummaryFor(ctx context.Context, n int, statistic stats.Statistic) (stats.SummaryRow, error) {
	summary, err := s.GetSummary(ctx, statistic)
	if err != nil {
		return stats.SummaryRow{}, err
	}
	if row, ok := summary.Lookup(n); ok {
		return row, nil
	}

	table, err := s.GetTable(ctx, n)
	if err != nil {
		return stats.SummaryRow{}, err
	}
	return runlength.Summarize(table, statistic), nil
}
