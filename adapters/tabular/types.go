package tabular

// RawRowData represents a row of raw tabular data as string key-value pairs
type RawRowData map[string]string

// RawTable represents a complete tabular dataset before typing
type RawTable struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}
