package runlength

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsleuth/domain/stats"
)

func TestSummarize_ChiSquaredN3(t *testing.T) {
	table, err := Calculate(context.Background(), 3)
	require.NoError(t, err)

	row := Summarize(table, stats.ChiSquared)

	// weights 4, 2, 2 over values 0.8, 3.2, 4.0
	assert.Equal(t, 3, row.N)
	assert.InDelta(t, 2.2, row.Mean, tolerance)
	assert.InDelta(t, math.Sqrt(16.32/7), row.StdDev, 1e-9)
	assert.InDelta(t, 0.8, row.Mode, tolerance)
	assert.InDelta(t, 0.8, row.Median, tolerance)
	assert.InDelta(t, 0.8, row.Min, tolerance)
	assert.InDelta(t, 4.0, row.Max, tolerance)
}

func TestSummarize_PValueMedianUsesAscendingValues(t *testing.T) {
	table, err := Calculate(context.Background(), 3)
	require.NoError(t, err)

	row := Summarize(table, stats.PValue)

	// Ascending p-values 0.25 (w=2), 0.5 (w=2), 1 (w=4): half the weight is
	// reached at 0.5. Searching in chi-squared order would give 1.
	assert.InDelta(t, 0.5, row.Median, tolerance)
	assert.InDelta(t, 1.0, row.Mode, tolerance)
	assert.InDelta(t, 0.25, row.Min, tolerance)
	assert.InDelta(t, 1.0, row.Max, tolerance)
	assert.InDelta(t, 0.6875, row.Mean, tolerance)
}

func TestSummarize_MedianIsAscendingForEveryStatistic(t *testing.T) {
	for n := 2; n <= 14; n++ {
		table, err := Calculate(context.Background(), n)
		require.NoError(t, err)

		for _, statistic := range stats.Statistics {
			row := Summarize(table, statistic)

			// reference: first value in ascending order whose cumulative
			// weight reaches half the total
			values := table.Values(statistic)
			weights := table.Weights()
			total := 0.0
			for _, w := range weights {
				total += w
			}
			want := math.Inf(1)
			for _, v := range values {
				below := 0.0
				for j, u := range values {
					if u <= v {
						below += weights[j]
					}
				}
				if below >= total/2 && v < want {
					want = v
				}
			}
			assert.Equal(t, want, row.Median, "N=%d %s", n, statistic)
			assert.LessOrEqual(t, row.Min, row.Median, "N=%d %s", n, statistic)
			assert.LessOrEqual(t, row.Median, row.Max, "N=%d %s", n, statistic)
		}
	}
}

func TestSummarizeAll_SortedByN(t *testing.T) {
	var tables []*stats.Table
	for _, n := range []int{5, 2, 4} {
		table, err := Calculate(context.Background(), n)
		require.NoError(t, err)
		tables = append(tables, table)
	}

	summary := SummarizeAll(tables, stats.LogChiSquared)

	assert.Equal(t, stats.LogChiSquared, summary.Statistic)
	require.Len(t, summary.Rows, 3)
	assert.Equal(t, []int{2, 4, 5}, []int{summary.Rows[0].N, summary.Rows[1].N, summary.Rows[2].N})
	assert.True(t, summary.Covers([]int{2, 4, 5}))
	assert.False(t, summary.Covers([]int{3}))
}
