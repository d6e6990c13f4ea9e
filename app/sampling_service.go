package app

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"coinsleuth/domain/core"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	"coinsleuth/ports"

	mstats "github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// ConfidenceLevels are the levels reported by MarginsOfError
var ConfidenceLevels = []float64{0.90, 0.95, 0.99, 0.999}

// SamplingService runs Monte Carlo trials against the statistics tables
type SamplingService struct {
	tables    ports.TableProvider
	summaries ports.SummaryProvider
	workers   int
	logger    *internal.Logger
}

// SamplingRequest describes one sampling-distribution run
type SamplingRequest struct {
	Trials     int
	SampleSize int
	Length     int
	Statistic  stats.Statistic
	Seed       int64
}

// NewSamplingService creates a sampling service
func NewSamplingService(tables ports.TableProvider, summaries ports.SummaryProvider, workers int, logger *internal.Logger) *SamplingService {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SamplingService{
		tables:    tables,
		summaries: summaries,
		workers:   workers,
		logger:    logger.WithComponent("SamplingService"),
	}
}

// RandomSequence draws a fair coin sequence of length n over "0" and "1"
func RandomSequence(rng *rand.Rand, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = '0' + byte(rng.Intn(2))
	}
	return string(buf)
}

// BuildSamplingDistribution records the sample mean of a statistic over
// req.Trials samples of req.SampleSize random sequences. Trial i draws from
// its own generator seeded with req.Seed+i, so results do not depend on scheduling.
func (s *SamplingService) BuildSamplingDistribution(ctx context.Context, req SamplingRequest) (*stats.SamplingDistribution, error) {
	if req.Trials < 1 {
		return nil, core.NewValidationError("trials", "must be at least 1")
	}
	if req.SampleSize < 1 {
		return nil, core.NewValidationError("sample_size", "must be at least 1")
	}
	if _, err := stats.ParseStatistic(string(req.Statistic)); err != nil {
		return nil, err
	}

	table, err := s.tables.GetTable(ctx, req.Length)
	if err != nil {
		return nil, err
	}

	s.logger.Info("running %d trials of %d sequences at N=%d for %s", req.Trials, req.SampleSize, req.Length, req.Statistic)

	means := make([]float64, req.Trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for trial := 0; trial < req.Trials; trial++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(req.Seed + int64(trial)))
			values := make([]float64, req.SampleSize)
			for i := range values {
				record, err := AnalyzeWithTable(table, RandomSequence(rng, req.Length))
				if err != nil {
					return err
				}
				values[i] = record.Value(req.Statistic)
			}
			mean, err := mstats.Mean(values)
			if err != nil {
				return fmt.Errorf("trial %d: %w", trial, err)
			}
			means[trial] = mean
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dist := &stats.SamplingDistribution{
		RunID:       core.NewRunID(),
		Statistic:   req.Statistic,
		Length:      req.Length,
		SampleSize:  req.SampleSize,
		SampleMeans: means,
	}
	if dist.Mean, err = mstats.Mean(means); err != nil {
		return nil, err
	}
	if req.Trials > 1 {
		if dist.StdDev, err = mstats.StandardDeviationSample(means); err != nil {
			return nil, err
		}
	}
	return dist, nil
}

// MarginsOfError reports z * std / sqrt(sampleSize) at every confidence level,
// using the population standard deviation of the statistic at length n
func (s *SamplingService) MarginsOfError(ctx context.Context, n, sampleSize int, statistic stats.Statistic) ([]stats.MarginOfError, error) {
	if sampleSize < 1 {
		return nil, core.NewValidationError("sample_size", "must be at least 1")
	}
	population, err := s.summaries.SummaryFor(ctx, n, statistic)
	if err != nil {
		return nil, err
	}

	margins := make([]stats.MarginOfError, len(ConfidenceLevels))
	for i, level := range ConfidenceLevels {
		z := distuv.UnitNormal.Quantile(1 - (1-level)/2)
		margins[i] = stats.MarginOfError{
			ConfidenceLevel: level,
			ZScore:          z,
			Margin:          z * population.StdDev / math.Sqrt(float64(sampleSize)),
		}
	}
	return margins, nil
}
