// Package runlength computes the chi-squared run-length statistics of binary
// sequences: the expected run-length model, the per-N statistics table and
// its multiplicity-weighted summaries.
package runlength

import "math"

// ExpectedCounts returns the expected number of runs of each length 1..n in a
// random binary sequence of length n. Entry k-1 is 0.25*(3+n-k)*2^(1-k) for
// k < n and 2^(1-n) for the single run covering the whole sequence.
func ExpectedCounts(n int) []float64 {
	if n < 1 {
		return nil
	}
	expected := make([]float64, n)
	for k := 1; k <= n; k++ {
		coefficient := 1.0
		if k < n {
			coefficient = 0.25 * float64(3+n-k)
		}
		expected[k-1] = math.Ldexp(coefficient, 1-k)
	}
	return expected
}
