package app

import (
	"context"
	"fmt"
	"math"

	"coinsleuth/domain/core"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	"coinsleuth/internal/metrics"
	"coinsleuth/ports"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// SampleTester compares sample means of each statistic against the population
// summary of the same sequence length
type SampleTester struct {
	summaries ports.SummaryProvider
	logger    *internal.Logger
}

// NewSampleTester creates a tester reading population summaries from summaries
func NewSampleTester(summaries ports.SummaryProvider, logger *internal.Logger) *SampleTester {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SampleTester{summaries: summaries, logger: logger.WithComponent("SampleTester")}
}

// Test runs a two-tailed z-test per statistic. Every record must share one length.
func (t *SampleTester) Test(ctx context.Context, records []stats.Record) (*stats.SampleReport, error) {
	if len(records) == 0 {
		return nil, core.ErrEmptySample
	}
	n := records[0].Length
	for _, record := range records[1:] {
		if record.Length != n {
			return nil, core.NewValidationError("records", fmt.Sprintf("mixed sequence lengths %d and %d", n, record.Length))
		}
	}

	report := &stats.SampleReport{
		RunID:      core.NewRunID(),
		Length:     n,
		SampleSize: len(records),
		Results:    make([]stats.TestResult, 0, len(stats.Statistics)),
	}

	for _, statistic := range stats.Statistics {
		values := make([]float64, len(records))
		for i, record := range records {
			values[i] = record.Value(statistic)
		}
		sampleMean, err := mstats.Mean(values)
		if err != nil {
			return nil, fmt.Errorf("sample mean of %s: %w", statistic, err)
		}

		population, err := t.summaries.SummaryFor(ctx, n, statistic)
		if err != nil {
			return nil, err
		}

		report.Results = append(report.Results, TwoTailedZTest(statistic, sampleMean, population, len(records)))
	}

	metrics.SamplesTested.Inc()
	t.logger.Debug("tested %d sequences of length %d (run %s)", len(records), n, report.RunID)
	return report, nil
}

// TwoTailedZTest compares a sample mean against a population summary row.
// Equal means give z = 0 and p = 1; a zero standard error with differing
// means gives an infinite z and p = 0.
func TwoTailedZTest(statistic stats.Statistic, sampleMean float64, population stats.SummaryRow, sampleSize int) stats.TestResult {
	result := stats.TestResult{
		Statistic:      statistic,
		SampleMean:     sampleMean,
		PopulationMean: population.Mean,
		StdError:       population.StdDev / math.Sqrt(float64(sampleSize)),
	}

	diff := sampleMean - population.Mean
	switch {
	case diff == 0:
		result.ZScore, result.PValue = 0, 1
	case result.StdError == 0:
		result.ZScore, result.PValue = math.Inf(sign(diff)), 0
	default:
		result.ZScore = diff / result.StdError
		result.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(result.ZScore))
	}
	return result
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
