package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"coinsleuth/domain/stats"

	"github.com/xuri/excelize/v2"
)

// Join appends the analysis columns to every row whose sequence was analyzed.
// Records are matched to rows by sequence value; the input is not modified.
func Join(data *Dataset, records []stats.Record) *Dataset {
	bySequence := make(map[string]stats.Record, len(records))
	for _, record := range records {
		bySequence[record.Sequence] = record
	}

	out := &Dataset{Headers: append([]string(nil), data.Headers...)}
	for _, column := range AnalysisColumns {
		if !data.HasColumn(column) {
			out.Headers = append(out.Headers, column)
		}
	}

	for _, row := range data.Rows {
		joined := make(Row, len(row)+len(AnalysisColumns))
		for k, v := range row {
			joined[k] = v
		}
		if record, ok := bySequence[row[SequenceColumn]]; ok {
			joined["length"] = strconv.Itoa(record.Length)
			joined["chi_squared"] = formatFloat(record.ChiSquared)
			joined["log_chi_squared"] = formatFloat(record.LogChiSquared)
			joined["p_value"] = formatFloat(record.PValue)
		}
		out.Rows = append(out.Rows, joined)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes the dataset with its header row
func WriteCSV(w io.Writer, data *Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(data.Records()); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// WriteXLSX writes the dataset to the first sheet of a new workbook at path
func WriteXLSX(path string, data *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, record := range data.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(record))
		for j, v := range record {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
