package api

import (
	"math"

	"coinsleuth/domain/stats"
)

// JSON has no encoding for NaN or infinities; such values are sent as null.
// Table and summary documents carry yaml tags for the CLI exports.

type rowResponse struct {
	Partition     string   `json:"partition" yaml:"partition"`
	Multiplicity  uint64   `json:"multiplicity" yaml:"multiplicity"`
	ChiSquared    float64  `json:"chi_squared" yaml:"chi_squared"`
	LogChiSquared *float64 `json:"log_chi_squared" yaml:"log_chi_squared"`
	PValue        float64  `json:"p_value" yaml:"p_value"`
}

type tableResponse struct {
	Key   string        `json:"key" yaml:"key"`
	N     int           `json:"n" yaml:"n"`
	Total uint64        `json:"total_multiplicity" yaml:"total_multiplicity"`
	Rows  []rowResponse `json:"rows" yaml:"rows"`
}

type summaryRowResponse struct {
	N      int      `json:"n" yaml:"n"`
	Mode   *float64 `json:"mode" yaml:"mode"`
	Min    *float64 `json:"min" yaml:"min"`
	Median *float64 `json:"median" yaml:"median"`
	Max    *float64 `json:"max" yaml:"max"`
	Mean   *float64 `json:"mean" yaml:"mean"`
	StdDev *float64 `json:"std_dev" yaml:"std_dev"`
}

type summaryResponse struct {
	Key       string               `json:"key" yaml:"key"`
	Statistic string               `json:"statistic" yaml:"statistic"`
	Rows      []summaryRowResponse `json:"rows" yaml:"rows"`
}

type recordResponse struct {
	Sequence      string   `json:"sequence"`
	Length        int      `json:"length"`
	ChiSquared    float64  `json:"chi_squared"`
	LogChiSquared *float64 `json:"log_chi_squared"`
	PValue        float64  `json:"p_value"`
}

type testResultResponse struct {
	Statistic      string   `json:"statistic"`
	SampleMean     *float64 `json:"sample_mean"`
	PopulationMean *float64 `json:"population_mean"`
	StdError       *float64 `json:"std_error"`
	ZScore         *float64 `json:"z_score"`
	PValue         *float64 `json:"p_value"`
}

type sampleReportResponse struct {
	RunID      string               `json:"run_id"`
	Length     int                  `json:"length"`
	SampleSize int                  `json:"sample_size"`
	Records    []recordResponse     `json:"records"`
	Results    []testResultResponse `json:"results"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newRowResponse(row stats.Row) rowResponse {
	return rowResponse{
		Partition:     string(row.Partition),
		Multiplicity:  row.Multiplicity,
		ChiSquared:    row.ChiSquared,
		LogChiSquared: finite(row.LogChiSquared),
		PValue:        row.PValue,
	}
}

func newTableResponse(table *stats.Table) tableResponse {
	resp := tableResponse{
		Key:   table.Key(),
		N:     table.N,
		Total: table.TotalMultiplicity(),
		Rows:  make([]rowResponse, len(table.Rows)),
	}
	for i, row := range table.Rows {
		resp.Rows[i] = newRowResponse(row)
	}
	return resp
}

func newSummaryResponse(summary *stats.SummaryTable) summaryResponse {
	resp := summaryResponse{
		Key:       summary.Key(),
		Statistic: string(summary.Statistic),
		Rows:      make([]summaryRowResponse, len(summary.Rows)),
	}
	for i, row := range summary.Rows {
		resp.Rows[i] = summaryRowResponse{
			N:      row.N,
			Mode:   finite(row.Mode),
			Min:    finite(row.Min),
			Median: finite(row.Median),
			Max:    finite(row.Max),
			Mean:   finite(row.Mean),
			StdDev: finite(row.StdDev),
		}
	}
	return resp
}

func newRecordResponses(records []stats.Record) []recordResponse {
	resp := make([]recordResponse, len(records))
	for i, record := range records {
		resp[i] = recordResponse{
			Sequence:      record.Sequence,
			Length:        record.Length,
			ChiSquared:    record.ChiSquared,
			LogChiSquared: finite(record.LogChiSquared),
			PValue:        record.PValue,
		}
	}
	return resp
}

func newSampleReportResponse(report *stats.SampleReport, records []stats.Record) sampleReportResponse {
	resp := sampleReportResponse{
		RunID:      report.RunID.String(),
		Length:     report.Length,
		SampleSize: report.SampleSize,
		Records:    newRecordResponses(records),
		Results:    make([]testResultResponse, len(report.Results)),
	}
	for i, result := range report.Results {
		resp.Results[i] = testResultResponse{
			Statistic:      string(result.Statistic),
			SampleMean:     finite(result.SampleMean),
			PopulationMean: finite(result.PopulationMean),
			StdError:       finite(result.StdError),
			ZScore:         finite(result.ZScore),
			PValue:         finite(result.PValue),
		}
	}
	return resp
}

// TableDocument is the wire form of a statistics table
func TableDocument(table *stats.Table) any { return newTableResponse(table) }

// SummaryDocument is the wire form of a summary table
func SummaryDocument(summary *stats.SummaryTable) any { return newSummaryResponse(summary) }
