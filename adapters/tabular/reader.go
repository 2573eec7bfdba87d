package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gobiome/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	log      *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "csv"
	if ext == ".xlsx" {
		fileType = "xlsx"
	}
	return &DataReader{filePath: filePath, fileType: fileType, log: internal.DefaultLogger}
}

// ReadTable reads data from Excel or CSV files into raw tabular format
func (r *DataReader) ReadTable() (*RawTable, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSV()
	case "xlsx":
		return r.readXLSX()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readXLSX reads data from Sheet1 into raw tabular format
func (r *DataReader) readXLSX() (*RawTable, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("failed to read Sheet1: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// readCSV reads CSV data into raw tabular format
func (r *DataReader) readCSV() (*RawTable, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into RawTable format
func (r *DataReader) processRows(rows [][]string) (*RawTable, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.log.Debug("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &RawTable{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

// DetectSubjectColumn automatically detects the subject-ID column
func (r *DataReader) DetectSubjectColumn(data *RawTable) (string, error) {
	if len(data.Rows) == 0 {
		return "", fmt.Errorf("no data rows found")
	}

	// Common subject column names to check
	commonSubjectColumns := []string{
		"subject_id",
		"sample_id",
		"sampleid",
		"subject",
		"sample",
		"id",
	}

	for _, colName := range commonSubjectColumns {
		for _, header := range data.Headers {
			if strings.ToLower(header) == colName {
				if r.isValidSubjectColumn(data, header) {
					return header, nil
				}
			}
		}
	}

	// Fall back to first column if no common names found
	if len(data.Headers) > 0 {
		firstCol := data.Headers[0]
		if r.isValidSubjectColumn(data, firstCol) {
			return firstCol, nil
		}
	}

	return "", fmt.Errorf("could not detect a valid subject-ID column")
}

// isValidSubjectColumn checks if a column is suitable as a subject key
func (r *DataReader) isValidSubjectColumn(data *RawTable, columnName string) bool {
	values := make(map[string]bool)
	emptyCount := 0

	for _, row := range data.Rows {
		if value, exists := row[columnName]; exists && value != "" {
			values[value] = true
		} else {
			emptyCount++
		}
	}

	// Subject keys must be non-empty and unique across rows
	return emptyCount == 0 && len(values) == len(data.Rows)
}
