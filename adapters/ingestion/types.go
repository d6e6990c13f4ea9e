package ingestion

// SequenceColumn is the header naming the column of sequences to analyze
const SequenceColumn = "sequence"

// Analysis columns appended by Join
var AnalysisColumns = []string{"length", "chi_squared", "log_chi_squared", "p_value"}

// Row is one input row as header -> cell text
type Row map[string]string

// Dataset is a tabular input with its column order
type Dataset struct {
	Headers []string
	Rows    []Row
}

// HasColumn reports whether the dataset carries a header
func (d *Dataset) HasColumn(name string) bool {
	for _, header := range d.Headers {
		if header == name {
			return true
		}
	}
	return false
}

// Column returns the cells of one column in row order
func (d *Dataset) Column(name string) []string {
	values := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[name]
	}
	return values
}

// Records returns the dataset as string rows, header first
func (d *Dataset) Records() [][]string {
	records := make([][]string, 0, len(d.Rows)+1)
	records = append(records, append([]string(nil), d.Headers...))
	for _, row := range d.Rows {
		record := make([]string, len(d.Headers))
		for i, header := range d.Headers {
			record[i] = row[header]
		}
		records = append(records, record)
	}
	return records
}
