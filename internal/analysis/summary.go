package analysis

import (
	"math"

	"gobiome/domain/cohort"
	"gobiome/domain/core"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// ColumnSummary holds per-covariate descriptive statistics
type ColumnSummary struct {
	Key     core.ColumnKey    `json:"key"`
	Type    cohort.ColumnType `json:"type"`
	N       int               `json:"n"`
	Missing int               `json:"missing"`

	// Numeric columns only
	Mean   float64 `json:"mean,omitempty"`
	StdDev float64 `json:"std_dev,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Median float64 `json:"median,omitempty"`
	Q25    float64 `json:"q25,omitempty"`
	Q75    float64 `json:"q75,omitempty"`

	// Categorical columns only
	Levels map[string]int `json:"levels,omitempty"`
}

// CorrelationMatrix is the pairwise Pearson correlation over numeric covariates
type CorrelationMatrix struct {
	Keys   []core.ColumnKey `json:"keys"`
	Values [][]float64      `json:"values"`
}

// At returns the correlation between two covariates by key
func (m *CorrelationMatrix) At(a, b core.ColumnKey) (float64, bool) {
	ai, bi := -1, -1
	for i, k := range m.Keys {
		if k == a {
			ai = i
		}
		if k == b {
			bi = i
		}
	}
	if ai < 0 || bi < 0 {
		return 0, false
	}
	return m.Values[ai][bi], true
}

// CohortSummary is the exploratory overview of the metadata table
type CohortSummary struct {
	Subjects    int                `json:"subjects"`
	Columns     []ColumnSummary    `json:"columns"`
	Correlation *CorrelationMatrix `json:"correlation"`
}

// Summarize computes descriptive statistics per metadata column plus a
// correlation matrix over the numeric columns. Missing entries are excluded
// column-wise (descriptives) and pairwise (correlations).
func Summarize(table *cohort.Table) (*CohortSummary, error) {
	if table.RowCount() == 0 {
		return nil, core.ErrInsufficientData
	}

	summary := &CohortSummary{Subjects: table.RowCount()}
	for _, col := range table.Columns {
		summary.Columns = append(summary.Columns, summarizeColumn(table, col))
	}
	summary.Correlation = correlationMatrix(table)
	return summary, nil
}

func summarizeColumn(table *cohort.Table, col cohort.Column) ColumnSummary {
	cs := ColumnSummary{
		Key:     col.Key,
		Type:    col.Type,
		N:       col.Len(),
		Missing: table.MissingCount(col.Key),
	}

	if !col.IsNumeric() {
		cs.Levels = make(map[string]int)
		for _, l := range col.Labels {
			if l != "" {
				cs.Levels[l]++
			}
		}
		return cs
	}

	observed := dropNaN(col.Values)
	if len(observed) == 0 {
		return cs
	}
	cs.Mean, _ = stats.Mean(observed)
	cs.StdDev, _ = stats.StandardDeviationSample(observed)
	cs.Min, _ = stats.Min(observed)
	cs.Max, _ = stats.Max(observed)
	cs.Median, _ = stats.Median(observed)
	cs.Q25, _ = stats.Percentile(observed, 25)
	cs.Q75, _ = stats.Percentile(observed, 75)
	return cs
}

// correlationMatrix computes pairwise Pearson correlations with pairwise
// complete-case deletion
func correlationMatrix(table *cohort.Table) *CorrelationMatrix {
	keys := table.NumericKeys()
	values := make([][]float64, len(keys))
	columns := make([][]float64, len(keys))
	for i, key := range keys {
		columns[i], _ = table.Numeric(key)
	}

	for i := range keys {
		values[i] = make([]float64, len(keys))
		values[i][i] = 1
		for j := 0; j < i; j++ {
			r := pairwiseCorrelation(columns[i], columns[j])
			values[i][j] = r
			values[j][i] = r
		}
	}
	return &CorrelationMatrix{Keys: keys, Values: values}
}

func pairwiseCorrelation(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
