package stats

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"
)

// ============================================================================
// STATISTIC NAMES
// ============================================================================

// Statistic names one column of a statistics table
type Statistic string

const (
	ChiSquared    Statistic = "chi_squared"
	LogChiSquared Statistic = "log_chi_squared"
	PValue        Statistic = "p_value"
)

// Statistics lists every supported test statistic in column order
var Statistics = []Statistic{ChiSquared, LogChiSquared, PValue}

func (s Statistic) String() string { return string(s) }

// ParseStatistic validates a statistic name
func ParseStatistic(name string) (Statistic, error) {
	for _, s := range Statistics {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownStatistic, name)
}

// ============================================================================
// KEY SPACE
// ============================================================================

// Key prefixes of the persistent key space
const (
	StatisticsPrefix = "/statistics/N_"
	SummaryPrefix    = "/summary/"
)

// StatisticsKey returns the persistent key of the statistics table for length n
func StatisticsKey(n int) string {
	return StatisticsPrefix + strconv.Itoa(n)
}

// SummaryKey returns the persistent key of the summary table for a statistic
func SummaryKey(s Statistic) string {
	return SummaryPrefix + string(s)
}

// ParseStatisticsKey extracts N from a statistics key
func ParseStatisticsKey(key string) (int, error) {
	if !strings.HasPrefix(key, StatisticsPrefix) {
		return 0, fmt.Errorf("not a statistics key: %q", key)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(key, StatisticsPrefix))
	if err != nil {
		return 0, fmt.Errorf("statistics key %q: %w", key, err)
	}
	return n, nil
}

// ============================================================================
// STATISTICS TABLE
// ============================================================================

// Row is one partition of N with its multiplicity and test statistics
type Row struct {
	Partition     partition.ID `json:"partition"`
	Multiplicity  uint64       `json:"multiplicity"`
	ChiSquared    float64      `json:"chi_squared"`
	LogChiSquared float64      `json:"log_chi_squared"`
	PValue        float64      `json:"p_value"`
}

// Value returns the named statistic of the row
func (r Row) Value(s Statistic) float64 {
	switch s {
	case ChiSquared:
		return r.ChiSquared
	case LogChiSquared:
		return r.LogChiSquared
	case PValue:
		return r.PValue
	}
	return math.NaN()
}

// Table holds one row per partition of N, sorted ascending by chi-squared.
// A Table is immutable once constructed.
type Table struct {
	N     int   `json:"n"`
	Rows  []Row `json:"rows"`
	index map[partition.ID]int
}

// NewTable wraps rows that are already in table order
func NewTable(n int, rows []Row) *Table {
	index := make(map[partition.ID]int, len(rows))
	for i, row := range rows {
		index[row.Partition] = i
	}
	return &Table{N: n, Rows: rows, index: index}
}

// Key returns the persistent key of the table
func (t *Table) Key() string { return StatisticsKey(t.N) }

// Len returns the number of partitions in the table
func (t *Table) Len() int { return len(t.Rows) }

// Lookup finds the row for a partition identity
func (t *Table) Lookup(id partition.ID) (Row, bool) {
	if t.index == nil {
		for _, row := range t.Rows {
			if row.Partition == id {
				return row, true
			}
		}
		return Row{}, false
	}
	i, ok := t.index[id]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// TotalMultiplicity sums multiplicity over every row
func (t *Table) TotalMultiplicity() uint64 {
	var total uint64
	for _, row := range t.Rows {
		total += row.Multiplicity
	}
	return total
}

// Values returns one statistic column in table order
func (t *Table) Values(s Statistic) []float64 {
	values := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row.Value(s)
	}
	return values
}

// Weights returns the multiplicity column as float weights
func (t *Table) Weights() []float64 {
	weights := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		weights[i] = float64(row.Multiplicity)
	}
	return weights
}

// ============================================================================
// SUMMARY TABLE
// ============================================================================

// SummaryRow aggregates one statistic over every partition of N, weighted by multiplicity
type SummaryRow struct {
	N      int     `json:"n"`
	Mode   float64 `json:"mode"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// SummaryTable holds one summary row per built N for a single statistic
type SummaryTable struct {
	Statistic Statistic    `json:"statistic"`
	Rows      []SummaryRow `json:"rows"`
}

// NewSummaryTable sorts rows by N
func NewSummaryTable(s Statistic, rows []SummaryRow) *SummaryTable {
	sort.Slice(rows, func(i, j int) bool { return rows[i].N < rows[j].N })
	return &SummaryTable{Statistic: s, Rows: rows}
}

// Key returns the persistent key of the summary
func (t *SummaryTable) Key() string { return SummaryKey(t.Statistic) }

// Lookup returns the summary row for length n
func (t *SummaryTable) Lookup(n int) (SummaryRow, bool) {
	i := sort.Search(len(t.Rows), func(i int) bool { return t.Rows[i].N >= n })
	if i < len(t.Rows) && t.Rows[i].N == n {
		return t.Rows[i], true
	}
	return SummaryRow{}, false
}

// Covers reports whether the summary has a row for every length given
func (t *SummaryTable) Covers(lengths []int) bool {
	for _, n := range lengths {
		if _, ok := t.Lookup(n); !ok {
			return false
		}
	}
	return true
}

// ============================================================================
// ANALYSIS RESULTS
// ============================================================================

// Record is the transient analysis of one sequence
type Record struct {
	Sequence      string  `json:"sequence"`
	Length        int     `json:"length"`
	ChiSquared    float64 `json:"chi_squared"`
	LogChiSquared float64 `json:"log_chi_squared"`
	PValue        float64 `json:"p_value"`
}

// NewRecord copies the statistics of a table row onto a sequence
func NewRecord(sequence string, length int, row Row) Record {
	return Record{
		Sequence:      sequence,
		Length:        length,
		ChiSquared:    row.ChiSquared,
		LogChiSquared: row.LogChiSquared,
		PValue:        row.PValue,
	}
}

// Value returns the named statistic of the record
func (r Record) Value(s Statistic) float64 {
	switch s {
	case ChiSquared:
		return r.ChiSquared
	case LogChiSquared:
		return r.LogChiSquared
	case PValue:
		return r.PValue
	}
	return math.NaN()
}

// TestResult is the z-test of a sample mean against the population of N
type TestResult struct {
	Statistic      Statistic `json:"statistic"`
	SampleMean     float64   `json:"sample_mean"`
	PopulationMean float64   `json:"population_mean"`
	StdError       float64   `json:"std_error"`
	ZScore         float64   `json:"z_score"`
	PValue         float64   `json:"p_value"`
}

// SampleReport collects the per-statistic tests of one sample
type SampleReport struct {
	RunID      core.RunID   `json:"run_id"`
	Length     int          `json:"length"`
	SampleSize int          `json:"sample_size"`
	Results    []TestResult `json:"results"`
}

// Result returns the test of one statistic
func (r *SampleReport) Result(s Statistic) (TestResult, bool) {
	for _, result := range r.Results {
		if result.Statistic == s {
			return result, true
		}
	}
	return TestResult{}, false
}

// SamplingDistribution holds the sample means of repeated Monte Carlo trials
type SamplingDistribution struct {
	RunID       core.RunID `json:"run_id"`
	Statistic   Statistic  `json:"statistic"`
	Length      int        `json:"length"`
	SampleSize  int        `json:"sample_size"`
	SampleMeans []float64  `json:"sample_means"`
	Mean        float64    `json:"mean"`
	StdDev      float64    `json:"std_dev"`
}

// MarginOfError is z * std / sqrt(sample size) at one confidence level
type MarginOfError struct {
	ConfidenceLevel float64 `json:"confidence_level"`
	ZScore          float64 `json:"z_score"`
	Margin          float64 `json:"margin"`
}
