// Package ingestion reads sequence samples from CSV, XLSX and JSON inputs
// and writes them back out joined with their analysis.
package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coinsleuth/domain/core"
	"coinsleuth/internal"

	"github.com/xuri/excelize/v2"
)

// Reader loads a Dataset from a CSV, XLSX or JSON file
type Reader struct {
	filePath string
	fileType string // "csv", "xlsx" or "json"
	dataPath string
	logger   *internal.Logger
}

// NewReader picks the file type from the extension. dataPath is the gjson
// path to the array of records and only applies to JSON files.
func NewReader(filePath, dataPath string, logger *internal.Logger) *Reader {
	fileType := "xlsx"
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		fileType = "csv"
	case ".json":
		fileType = "json"
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Reader{
		filePath: filePath,
		fileType: fileType,
		dataPath: dataPath,
		logger:   logger.WithComponent("DataReader"),
	}
}

// Read loads the file and checks that it has a sequence column
func (r *Reader) Read() (*Dataset, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s file not found: %s", core.ErrInvalidInput, strings.ToUpper(r.fileType), r.filePath)
	}

	start := time.Now()
	var (
		data *Dataset
		err  error
	)
	switch r.fileType {
	case "csv":
		data, err = r.readCSV()
	case "json":
		data, err = r.readJSON()
	default:
		data, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}

	if !data.HasColumn(SequenceColumn) {
		return nil, core.NewValidationError(r.filePath, fmt.Sprintf("missing %q column", SequenceColumn))
	}
	r.logger.Info("%s file processed (%d columns, %d rows) in %s",
		strings.ToUpper(r.fileType), len(data.Headers), len(data.Rows), time.Since(start))
	return data, nil
}

// readExcel reads the first sheet of the workbook
func (r *Reader) readExcel() (*Dataset, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.NewValidationError(r.filePath, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return processRows(rows)
}

func (r *Reader) readCSV() (*Dataset, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

func (r *Reader) readJSON() (*Dataset, error) {
	body, err := os.ReadFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	return ReadJSON(body, r.dataPath)
}

// ReadCSV parses CSV text with a header row
func ReadCSV(in io.Reader) (*Dataset, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return processRows(rows)
}

// processRows converts raw string rows, header first, into a Dataset
func processRows(rows [][]string) (*Dataset, error) {
	if len(rows) < 2 {
		return nil, core.NewValidationError("input", "must have a header row and at least one data row")
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	data := &Dataset{Headers: headers, Rows: make([]Row, 0, len(rows)-1)}
	for _, raw := range rows[1:] {
		row := make(Row, len(headers))
		for j, cell := range raw {
			if j < len(headers) {
				row[headers[j]] = strings.TrimSpace(cell)
			}
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}
