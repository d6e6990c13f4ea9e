package runlength

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"coinsleuth/domain/stats"
)

// Summarize aggregates one statistic of a table, weighting every row by its
// multiplicity. The variance divides by (sum of weights - 1). Mode is the
// value of the row with the largest multiplicity. Median is read after
// sorting the statistic's own values ascending, since p_value runs opposite
// to the table's chi-squared order.
func Summarize(table *stats.Table, statistic stats.Statistic) stats.SummaryRow {
	values := table.Values(statistic)
	weights := table.Weights()

	mean, variance := stat.MeanVariance(values, weights)

	return stats.SummaryRow{
		N:      table.N,
		Mode:   values[floats.MaxIdx(weights)],
		Min:    floats.Min(values),
		Median: weightedMedian(values, weights),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: math.Sqrt(variance),
	}
}

// SummarizeAll builds the summary-by-N table of one statistic.
func SummarizeAll(tables []*stats.Table, statistic stats.Statistic) *stats.SummaryTable {
	rows := make([]stats.SummaryRow, 0, len(tables))
	for _, table := range tables {
		rows = append(rows, Summarize(table, statistic))
	}
	return stats.NewSummaryTable(statistic, rows)
}

// weightedMedian returns the first value, in ascending order, at which the
// cumulative weight reaches half of the total.
func weightedMedian(values, weights []float64) float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	sortedValues := make([]float64, len(values))
	sortedWeights := make([]float64, len(values))
	for i, idx := range order {
		sortedValues[i] = values[idx]
		sortedWeights[i] = weights[idx]
	}
	return stat.Quantile(0.5, stat.Empirical, sortedValues, sortedWeights)
}
