package runlength

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"
	"coinsleuth/domain/stats"
)

const tolerance = 1e-12

func TestExpectedCounts(t *testing.T) {
	assert.Equal(t, []float64{1}, ExpectedCounts(1))
	assert.Equal(t, []float64{1.25, 0.5, 0.25}, ExpectedCounts(3))

	for n := 1; n <= 40; n++ {
		expected := ExpectedCounts(n)
		require.Len(t, expected, n)
		assert.Equal(t, math.Ldexp(1, 1-n), expected[n-1], "N=%d: full-length run", n)
		for k, e := range expected {
			assert.Greater(t, e, 0.0, "N=%d k=%d", n, k+1)
		}
	}
	assert.Nil(t, ExpectedCounts(0))
}

func TestChiSquared(t *testing.T) {
	expected := ExpectedCounts(3)
	assert.InDelta(t, 0.8, ChiSquared([]int{1, 1, 0}, expected), tolerance)
	assert.InDelta(t, 3.2, ChiSquared([]int{3, 0, 0}, expected), tolerance)
	assert.InDelta(t, 4.0, ChiSquared([]int{0, 0, 1}, expected), tolerance)
	assert.Equal(t, 0.0, ChiSquared([]int{1}, ExpectedCounts(1)))
}

func TestMultiplicity(t *testing.T) {
	tests := []struct {
		parts []int
		want  uint64
	}{
		{[]int{3}, 2},
		{[]int{1, 1, 1}, 2},
		{[]int{1, 2}, 4},
		{[]int{1, 1, 2}, 6},
		{[]int{1, 2, 3}, 12},
		{[]int{1, 1, 2, 2}, 12},
	}
	for _, tt := range tests {
		got, err := Multiplicity(partition.New(tt.parts...))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "partition %v", tt.parts)
	}
}

// N=3: [1,1,1], [1,2], [3] have multiplicities 2, 4, 2 and sum to 2^3.
func TestCalculate_WorkedExampleN3(t *testing.T) {
	table, err := Calculate(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	ids := []partition.ID{"1+2", "1+1+1", "3"}
	multiplicities := []uint64{4, 2, 2}
	chiSquared := []float64{0.8, 3.2, 4.0}
	pValues := []float64{1, 0.5, 0.25}
	for i, row := range table.Rows {
		assert.Equal(t, ids[i], row.Partition)
		assert.Equal(t, multiplicities[i], row.Multiplicity)
		assert.InDelta(t, chiSquared[i], row.ChiSquared, tolerance)
		assert.InDelta(t, math.Log10(chiSquared[i]), row.LogChiSquared, tolerance)
		assert.InDelta(t, pValues[i], row.PValue, tolerance)
	}
	assert.Equal(t, uint64(8), table.TotalMultiplicity())
}

func TestCalculate_RowCountAndTotal(t *testing.T) {
	for n := 1; n <= 22; n++ {
		table, err := Calculate(context.Background(), n)
		require.NoError(t, err, "N=%d", n)

		assert.Equal(t, partition.Count(n), uint64(table.Len()), "N=%d", n)
		assert.Equal(t, uint64(1)<<n, table.TotalMultiplicity(), "N=%d", n)
		assert.NoError(t, Verify(table), "N=%d", n)
	}
}

func TestCalculate_PValueOrdering(t *testing.T) {
	for n := 1; n <= 18; n++ {
		table, err := Calculate(context.Background(), n)
		require.NoError(t, err)

		first := table.Rows[0]
		last := table.Rows[table.Len()-1]
		assert.InDelta(t, 1.0, first.PValue, tolerance, "N=%d", n)
		assert.InDelta(t, float64(last.Multiplicity)/math.Ldexp(1, n), last.PValue, tolerance, "N=%d", n)

		for i := 1; i < table.Len(); i++ {
			assert.LessOrEqual(t, table.Rows[i-1].ChiSquared, table.Rows[i].ChiSquared, "N=%d row %d", n, i)
			assert.LessOrEqual(t, table.Rows[i].PValue, table.Rows[i-1].PValue, "N=%d row %d", n, i)
		}
	}
}

func TestCalculate_TiesOrderedByIdentity(t *testing.T) {
	table, err := Calculate(context.Background(), 2)
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	assert.Equal(t, partition.ID("1+1"), table.Rows[0].Partition)
	assert.Equal(t, partition.ID("2"), table.Rows[1].Partition)
	assert.Equal(t, table.Rows[0].ChiSquared, table.Rows[1].ChiSquared)
	assert.InDelta(t, 0.5, table.Rows[1].PValue, tolerance)
}

func TestCalculate_SingleFlipHasZeroStatistic(t *testing.T) {
	table, err := Calculate(context.Background(), 1)
	require.NoError(t, err)

	row, ok := table.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, uint64(2), row.Multiplicity)
	assert.Equal(t, 0.0, row.ChiSquared)
	assert.True(t, math.IsInf(row.LogChiSquared, -1))
	assert.Equal(t, 1.0, row.PValue)
}

func TestCalculate_Deterministic(t *testing.T) {
	a, err := Calculate(context.Background(), 12)
	require.NoError(t, err)
	b, err := Calculate(context.Background(), 12)
	require.NoError(t, err)

	assert.Equal(t, a.Rows, b.Rows)
}

func TestCalculate_InvalidLength(t *testing.T) {
	for _, n := range []int{0, -1, partition.MaxLength + 1} {
		_, err := Calculate(context.Background(), n)
		assert.True(t, errors.Is(err, core.ErrInvalidInput), "N=%d: %v", n, err)
	}
}

func TestCalculate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Calculate(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerify_DetectsCorruption(t *testing.T) {
	table, err := Calculate(context.Background(), 4)
	require.NoError(t, err)

	rows := append([]stats.Row(nil), table.Rows...)
	rows[0].Multiplicity++
	err = Verify(stats.NewTable(4, rows))
	assert.True(t, core.IsInvariantViolation(err))

	err = Verify(stats.NewTable(4, table.Rows[1:]))
	assert.True(t, core.IsInvariantViolation(err))

	dup := append([]stats.Row(nil), table.Rows...)
	dup[1].Partition = dup[0].Partition
	err = Verify(stats.NewTable(4, dup))
	assert.True(t, core.IsInvariantViolation(err))
}
