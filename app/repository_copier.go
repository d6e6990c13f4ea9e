package app

import (
	"context"
	"fmt"

	"coinsleuth/adapters/stats/runlength"
	"coinsleuth/domain/core"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	"coinsleuth/ports"
)

// CopyReport counts what CopyRepository moved
type CopyReport struct {
	Tables    int
	Summaries int
}

// CopyRepository copies every statistics table and summary from one backend
// to another. Tables are verified before they are written; tables already in
// the destination are kept.
func CopyRepository(ctx context.Context, from, to ports.TableRepository, logger *internal.Logger) (*CopyReport, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	logger = logger.WithComponent("Migrate")

	lengths, err := from.ListLengths(ctx)
	if err != nil {
		return nil, err
	}

	report := &CopyReport{}
	for _, n := range lengths {
		table, err := from.LoadStatistics(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("load N=%d: %w", n, err)
		}
		if err := runlength.Verify(table); err != nil {
			return nil, err
		}
		if err := to.SaveStatistics(ctx, table); err != nil {
			return nil, fmt.Errorf("save N=%d: %w", n, err)
		}
		report.Tables++
		logger.Debug("copied %s", table.Key())
	}

	for _, statistic := range stats.Statistics {
		summary, err := from.LoadSummary(ctx, statistic)
		if core.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := to.SaveSummary(ctx, summary); err != nil {
			return nil, fmt.Errorf("save %s: %w", summary.Key(), err)
		}
		report.Summaries++
	}

	logger.Info("copied %d tables and %d summaries", report.Tables, report.Summaries)
	return report, nil
}
