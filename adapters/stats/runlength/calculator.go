package runlength

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sort"

	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"
	"coinsleuth/domain/stats"
)

// cancellation is checked once per this many partitions
const checkEvery = 4096

// ChiSquared is the Pearson statistic sum((observed-expected)^2/expected).
func ChiSquared(observed []int, expected []float64) float64 {
	chiSq := 0.0
	for k, e := range expected {
		d := float64(observed[k]) - e
		chiSq += d * d / e
	}
	return chiSq
}

// Multiplicity counts the binary sequences whose runs have the lengths in p:
// the L!/prod(c_v!) distinct orderings of the L runs, times 2 for the symbol
// that opens the first run.
func Multiplicity(p partition.Partition) (uint64, error) {
	counts := make(map[int]int64)
	for _, part := range p {
		counts[part]++
	}

	m := new(big.Int).MulRange(1, int64(len(p)))
	f := new(big.Int)
	for _, c := range counts {
		m.Quo(m, f.MulRange(1, c))
	}
	m.Lsh(m, 1)

	if !m.IsUint64() {
		return 0, fmt.Errorf("%w: multiplicity of %s overflows uint64", core.ErrLengthOutOfRange, p.ID())
	}
	return m.Uint64(), nil
}

// ValidateLength rejects lengths outside 1..MaxLength.
func ValidateLength(n int) error {
	if n < 1 || n > partition.MaxLength {
		return fmt.Errorf("%w: N=%d, want 1..%d", core.ErrLengthOutOfRange, n, partition.MaxLength)
	}
	return nil
}

// Calculate builds the statistics table for length n. Rows are sorted
// ascending by chi-squared, ties ordered by partition identity, and each
// row's p-value is the multiplicity from that row to the end of the table
// divided by 2^n.
//
// log_chi_squared is log10(chi_squared); for a zero statistic (only N=1)
// it is -Inf.
func Calculate(ctx context.Context, n int) (*stats.Table, error) {
	if err := ValidateLength(n); err != nil {
		return nil, err
	}

	expected := ExpectedCounts(n)
	rows := make([]stats.Row, 0, partition.Count(n))

	for p := range partition.Enumerate(n) {
		if len(rows)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("calculate N=%d: %w", n, err)
			}
		}

		multiplicity, err := Multiplicity(p)
		if err != nil {
			return nil, err
		}
		chiSq := ChiSquared(p.Counts(n), expected)

		rows = append(rows, stats.Row{
			Partition:     p.ID(),
			Multiplicity:  multiplicity,
			ChiSquared:    chiSq,
			LogChiSquared: math.Log10(chiSq),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ChiSquared != rows[j].ChiSquared {
			return rows[i].ChiSquared < rows[j].ChiSquared
		}
		return rows[i].Partition < rows[j].Partition
	})

	total := uint64(1) << n
	var tail uint64
	for i := len(rows) - 1; i >= 0; i-- {
		tail += rows[i].Multiplicity
		rows[i].PValue = float64(tail) / float64(total)
	}
	if tail != total {
		return nil, core.NewInvariantError("N=%d: total multiplicity %d != 2^N = %d", n, tail, total)
	}

	return stats.NewTable(n, rows), nil
}

// Verify checks the structural invariants of a table that did not come
// straight from Calculate: one distinct row per partition and a total
// multiplicity of 2^N.
func Verify(table *stats.Table) error {
	if err := ValidateLength(table.N); err != nil {
		return err
	}
	if want := partition.Count(table.N); uint64(table.Len()) != want {
		return core.NewInvariantError("N=%d: %d rows, want p(N) = %d", table.N, table.Len(), want)
	}
	seen := make(map[partition.ID]bool, table.Len())
	for _, row := range table.Rows {
		if seen[row.Partition] {
			return core.NewInvariantError("N=%d: duplicate partition %s", table.N, row.Partition)
		}
		seen[row.Partition] = true
	}
	if total, want := table.TotalMultiplicity(), uint64(1)<<table.N; total != want {
		return core.NewInvariantError("N=%d: total multiplicity %d != 2^N = %d", table.N, total, want)
	}
	return nil
}
