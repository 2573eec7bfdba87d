package ols

import (
	"fmt"
	"math"
	"sort"

	"gobiome/domain/cohort"
	"gobiome/domain/core"
)

// InterceptTerm is the name of the constant column every design carries
const InterceptTerm = "(intercept)"

// Design is a regression design matrix in row-major form, before any
// complete-case filtering. Missing entries are NaN.
type Design struct {
	Terms []string    // column names, intercept first
	Rows  [][]float64 // n rows of len(Terms) values
}

// N returns the number of subjects covered by the design
func (d *Design) N() int {
	return len(d.Rows)
}

// TermIndex returns the column index of a term
func (d *Design) TermIndex(term string) (int, bool) {
	for i, t := range d.Terms {
		if t == term {
			return i, true
		}
	}
	return -1, false
}

// CategoricalEncoder expands a categorical column into indicator variables
// with one reference level dropped. The reference level is an explicit
// parameter; when empty or absent from the observed levels it falls back to
// the lexicographically smallest level.
type CategoricalEncoder struct {
	Reference string
}

// Encode returns one indicator column per non-reference level, levels sorted
// lexicographically. Missing labels ("") yield NaN across all indicators so
// complete-case filtering excludes those rows.
func (e CategoricalEncoder) Encode(key core.ColumnKey, labels []string) (terms []string, columns [][]float64, err error) {
	seen := make(map[string]bool)
	for _, l := range labels {
		if l != "" {
			seen[l] = true
		}
	}
	if len(seen) < 2 {
		return nil, nil, core.NewValidationError(string(key),
			fmt.Sprintf("categorical column needs at least 2 levels, found %d", len(seen)))
	}

	levels := make([]string, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Strings(levels)

	reference := e.Reference
	if reference == "" || !seen[reference] {
		reference = levels[0]
	}

	for _, level := range levels {
		if level == reference {
			continue
		}
		terms = append(terms, fmt.Sprintf("%s[%s]", key, level))
		indicator := make([]float64, len(labels))
		for i, l := range labels {
			switch {
			case l == "":
				indicator[i] = math.NaN()
			case l == level:
				indicator[i] = 1
			default:
				indicator[i] = 0
			}
		}
		columns = append(columns, indicator)
	}
	return terms, columns, nil
}

// DesignBuilder assembles design matrices from a metadata table
type DesignBuilder struct {
	encoder CategoricalEncoder
}

// NewDesignBuilder creates a builder with the given categorical reference level
func NewDesignBuilder(referenceLevel string) *DesignBuilder {
	return &DesignBuilder{encoder: CategoricalEncoder{Reference: referenceLevel}}
}

// Build constructs intercept + the named covariates, in order. Numeric and
// binary columns enter directly; categorical columns are indicator-encoded.
func (b *DesignBuilder) Build(table *cohort.Table, covariates []core.ColumnKey) (*Design, error) {
	n := table.RowCount()
	terms := []string{InterceptTerm}
	columns := [][]float64{constantColumn(n)}

	for _, key := range covariates {
		col, ok := table.Column(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrColumnNotFound, key)
		}
		if col.IsNumeric() {
			terms = append(terms, string(key))
			columns = append(columns, col.Values)
			continue
		}
		encTerms, encColumns, err := b.encoder.Encode(key, col.Labels)
		if err != nil {
			return nil, err
		}
		terms = append(terms, encTerms...)
		columns = append(columns, encColumns...)
	}

	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, len(columns))
		for j, col := range columns {
			row[j] = col[i]
		}
		rows[i] = row
	}
	return &Design{Terms: terms, Rows: rows}, nil
}

func constantColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = 1
	}
	return col
}
