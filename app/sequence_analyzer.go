package app

import (
	"context"
	"fmt"

	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	"coinsleuth/internal/metrics"
	"coinsleuth/ports"

	"golang.org/x/sync/errgroup"
)

// SequenceAnalyzer maps binary sequences to their row of the statistics table
type SequenceAnalyzer struct {
	tables  ports.TableProvider
	workers int
	logger  *internal.Logger
}

// NewSequenceAnalyzer creates an analyzer that fans samples out over workers goroutines
func NewSequenceAnalyzer(tables ports.TableProvider, workers int, logger *internal.Logger) *SequenceAnalyzer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SequenceAnalyzer{
		tables:  tables,
		workers: workers,
		logger:  logger.WithComponent("SequenceAnalyzer"),
	}
}

// PartitionOf validates a sequence and returns its run-length partition.
// Any two distinct symbols are accepted.
func PartitionOf(sequence string) (partition.Partition, error) {
	symbols := []rune(sequence)
	if len(symbols) == 0 {
		return nil, core.ErrEmptySequence
	}

	var first, second rune
	distinct := 0
	for _, r := range symbols {
		switch {
		case distinct == 0:
			first, distinct = r, 1
		case r == first:
		case distinct == 1:
			second, distinct = r, 2
		case r != second:
			return nil, fmt.Errorf("%w: %q", core.ErrNonBinarySequence, sequence)
		}
	}

	return partition.Runs(symbols), nil
}

// AnalyzeWithTable reads the row of a sequence from a table of matching length
func AnalyzeWithTable(table *stats.Table, sequence string) (stats.Record, error) {
	p, err := PartitionOf(sequence)
	if err != nil {
		return stats.Record{}, err
	}
	n := p.Sum()
	if n != table.N {
		return stats.Record{}, fmt.Errorf("%w: sequence of length %d against table for N=%d", core.ErrInvalidInput, n, table.N)
	}

	row, ok := table.Lookup(p.ID())
	if !ok {
		return stats.Record{}, core.NewInvariantError("partition %s missing from %s", p.ID(), table.Key())
	}
	return stats.NewRecord(sequence, n, row), nil
}

// Analyze returns the statistics of one sequence
func (a *SequenceAnalyzer) Analyze(ctx context.Context, sequence string) (stats.Record, error) {
	p, err := PartitionOf(sequence)
	if err != nil {
		return stats.Record{}, err
	}

	table, err := a.tables.GetTable(ctx, p.Sum())
	if err != nil {
		return stats.Record{}, err
	}

	record, err := AnalyzeWithTable(table, sequence)
	if err != nil {
		return stats.Record{}, err
	}
	metrics.SequencesAnalyzed.Inc()
	return record, nil
}

// AnalyzeSample analyzes every sequence, preserving input order
func (a *SequenceAnalyzer) AnalyzeSample(ctx context.Context, sequences []string) ([]stats.Record, error) {
	if len(sequences) == 0 {
		return nil, core.ErrEmptySample
	}

	records := make([]stats.Record, len(sequences))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, sequence := range sequences {
		g.Go(func() error {
			record, err := a.Analyze(gctx, sequence)
			if err != nil {
				return fmt.Errorf("sequence %d: %w", i, err)
			}
			records[i] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	a.logger.Debug("analyzed %d sequences", len(records))
	return records, nil
}
