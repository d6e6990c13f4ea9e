package app

import (
	"context"
	"fmt"
	"time"

	"coinsleuth/adapters/stats/runlength"
	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
)

// DatabaseBuilder fills the statistics store over a range of lengths
type DatabaseBuilder struct {
	store  *StatisticsStore
	logger *internal.Logger
}

// BuildReport summarizes one BuildRange call
type BuildReport struct {
	Lower     int                   `json:"lower"`
	Upper     int                   `json:"upper"`
	Built     []int                 `json:"built"`
	Existing  []int                 `json:"existing"`
	Summaries []*stats.SummaryTable `json:"summaries,omitempty"`
	Duration  time.Duration         `json:"duration"`
}

// NewDatabaseBuilder creates a builder over store
func NewDatabaseBuilder(store *StatisticsStore, logger *internal.Logger) *DatabaseBuilder {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DatabaseBuilder{store: store, logger: logger.WithComponent("DatabaseBuilder")}
}

// BuildRange builds every missing table for lower <= N <= upper, then
// regenerates all summaries when summarize is set
func (b *DatabaseBuilder) BuildRange(ctx context.Context, lower, upper int, summarize bool) (*BuildReport, error) {
	if lower > upper {
		return nil, core.NewValidationError("range", fmt.Sprintf("lower %d exceeds upper %d", lower, upper))
	}
	for _, n := range []int{lower, upper} {
		if err := runlength.ValidateLength(n); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	report := &BuildReport{Lower: lower, Upper: upper}

	for n := lower; n <= upper; n++ {
		has, err := b.store.HasTable(ctx, n)
		if err != nil {
			return nil, err
		}
		if has {
			report.Existing = append(report.Existing, n)
			b.logger.Debug("N=%d already built", n)
			continue
		}

		b.logger.Info("building N=%d (%d partitions)", n, partition.Count(n))
		if _, err := b.store.GetTable(ctx, n); err != nil {
			return nil, fmt.Errorf("build N=%d: %w", n, err)
		}
		report.Built = append(report.Built, n)
	}

	if summarize {
		summaries, err := b.Summarize(ctx)
		if err != nil {
			return nil, err
		}
		report.Summaries = summaries
	}

	report.Duration = time.Since(start)
	b.logger.Info("built %d tables, %d already present, in %s", len(report.Built), len(report.Existing), report.Duration)
	return report, nil
}

// Summarize regenerates the summary of every statistic over every stored N
func (b *DatabaseBuilder) Summarize(ctx context.Context) ([]*stats.SummaryTable, error) {
	summaries, err := b.store.RebuildSummaries(ctx)
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		b.logger.Info("summarized %s over %d lengths", summary.Statistic, len(summary.Rows))
	}
	return summaries, nil
}
