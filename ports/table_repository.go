package ports

import (
	"context"

	"coinsleuth/domain/stats"
)

// TableRepository is the persistent tier of the statistics store.
// Statistics tables are keyed by stats.StatisticsKey and written at most once;
// summary tables are keyed by stats.SummaryKey and replaced on rebuild.
type TableRepository interface {
	// Key space
	HasKey(ctx context.Context, key string) (bool, error)
	ListLengths(ctx context.Context) ([]int, error)

	// Statistics tables, core.ErrTableNotFound when absent
	LoadStatistics(ctx context.Context, n int) (*stats.Table, error)
	SaveStatistics(ctx context.Context, table *stats.Table) error

	// Summary tables, core.ErrSummaryNotFound when absent
	LoadSummary(ctx context.Context, statistic stats.Statistic) (*stats.SummaryTable, error)
	SaveSummary(ctx context.Context, summary *stats.SummaryTable) error

	Close() error
}

// TableProvider returns the statistics table for a sequence length
type TableProvider interface {
	GetTable(ctx context.Context, n int) (*stats.Table, error)
}

// SummaryProvider returns the population summary of one statistic at length n
type SummaryProvider interface {
	SummaryFor(ctx context.Context, n int, statistic stats.Statistic) (stats.SummaryRow, error)
}
