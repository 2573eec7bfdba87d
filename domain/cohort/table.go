package cohort

import (
	"fmt"
	"math"

	"gobiome/domain/core"
)

// ColumnType defines variable types for analysis
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeBinary      ColumnType = "binary"
	TypeCategorical ColumnType = "categorical"
)

// Column holds one metadata covariate across all subjects.
// Numeric and binary columns use Values with NaN for missing entries;
// categorical columns use Labels with "" for missing entries.
type Column struct {
	Key    core.ColumnKey
	Type   ColumnType
	Values []float64
	Labels []string
}

// IsNumeric reports whether the column carries float values
func (c Column) IsNumeric() bool {
	return c.Type == TypeNumeric || c.Type == TypeBinary
}

// Len returns the number of subjects covered by the column
func (c Column) Len() int {
	if c.IsNumeric() {
		return len(c.Values)
	}
	return len(c.Labels)
}

// Table is a column-typed metadata table indexed by subject ID
type Table struct {
	SubjectIDs []core.SubjectID
	Columns    []Column

	index map[core.ColumnKey]int
}

// NewTable creates an empty table over the given subjects
func NewTable(subjects []core.SubjectID) *Table {
	return &Table{
		SubjectIDs: subjects,
		index:      make(map[core.ColumnKey]int),
	}
}

// AddColumn appends a column; its length must match the subject count
func (t *Table) AddColumn(col Column) error {
	if col.Len() != len(t.SubjectIDs) {
		return core.NewValidationError(string(col.Key),
			fmt.Sprintf("column has %d rows, table has %d subjects", col.Len(), len(t.SubjectIDs)))
	}
	if _, exists := t.index[col.Key]; exists {
		return core.NewValidationError(string(col.Key), "duplicate column")
	}
	t.index[col.Key] = len(t.Columns)
	t.Columns = append(t.Columns, col)
	return nil
}

// Column returns a column by key
func (t *Table) Column(key core.ColumnKey) (Column, bool) {
	i, ok := t.index[key]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// Numeric returns the float values of a numeric or binary column
func (t *Table) Numeric(key core.ColumnKey) ([]float64, error) {
	col, ok := t.Column(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrColumnNotFound, key)
	}
	if !col.IsNumeric() {
		return nil, core.NewValidationError(string(key), "column is not numeric")
	}
	return col.Values, nil
}

// Labels returns the string levels of a categorical column
func (t *Table) Labels(key core.ColumnKey) ([]string, error) {
	col, ok := t.Column(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrColumnNotFound, key)
	}
	if col.IsNumeric() {
		return nil, core.NewValidationError(string(key), "column is not categorical")
	}
	return col.Labels, nil
}

// NumericKeys returns the keys of all numeric and binary columns in table order
func (t *Table) NumericKeys() []core.ColumnKey {
	keys := make([]core.ColumnKey, 0, len(t.Columns))
	for _, col := range t.Columns {
		if col.IsNumeric() {
			keys = append(keys, col.Key)
		}
	}
	return keys
}

// RowCount returns the number of subjects
func (t *Table) RowCount() int {
	return len(t.SubjectIDs)
}

// ColumnCount returns the number of covariates
func (t *Table) ColumnCount() int {
	return len(t.Columns)
}

// Select returns a new table restricted to the given row indices, in order
func (t *Table) Select(rows []int) *Table {
	subjects := make([]core.SubjectID, len(rows))
	for i, r := range rows {
		subjects[i] = t.SubjectIDs[r]
	}
	out := NewTable(subjects)
	for _, col := range t.Columns {
		sub := Column{Key: col.Key, Type: col.Type}
		if col.IsNumeric() {
			sub.Values = make([]float64, len(rows))
			for i, r := range rows {
				sub.Values[i] = col.Values[r]
			}
		} else {
			sub.Labels = make([]string, len(rows))
			for i, r := range rows {
				sub.Labels[i] = col.Labels[r]
			}
		}
		// Lengths match by construction, AddColumn cannot fail here
		_ = out.AddColumn(sub)
	}
	return out
}

// Validate ensures the table is internally consistent
func (t *Table) Validate() error {
	for _, col := range t.Columns {
		if col.Len() != len(t.SubjectIDs) {
			return core.NewValidationError(string(col.Key),
				fmt.Sprintf("column has %d rows, table has %d subjects", col.Len(), len(t.SubjectIDs)))
		}
	}
	return nil
}

// MissingCount returns the number of missing entries in a column
func (t *Table) MissingCount(key core.ColumnKey) int {
	col, ok := t.Column(key)
	if !ok {
		return 0
	}
	missing := 0
	if col.IsNumeric() {
		for _, v := range col.Values {
			if math.IsNaN(v) {
				missing++
			}
		}
	} else {
		for _, l := range col.Labels {
			if l == "" {
				missing++
			}
		}
	}
	return missing
}
