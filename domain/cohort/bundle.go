package cohort

import (
	"fmt"
	"math"

	"gobiome/domain/core"
)

// WarningCode represents structured data-quality warning types
type WarningCode string

const (
	WarningRowSumDeviates  WarningCode = "ROW_SUM_DEVIATES"  // abundance row sum far from 1
	WarningSubjectsDropped WarningCode = "SUBJECTS_DROPPED"  // inner join excluded subjects
	WarningHighMissing     WarningCode = "HIGH_MISSING"      // >30% missing in a covariate
	WarningConstantFeature WarningCode = "CONSTANT_FEATURE"  // zero-variance abundance column
)

// Matrix holds the relative-abundance data, rows=subjects, cols=features
type Matrix struct {
	Data        [][]float64
	SubjectIDs  []core.SubjectID
	FeatureKeys []core.FeatureKey

	featureIndex map[core.FeatureKey]int
}

// NewMatrix creates an abundance matrix and builds the feature index
func NewMatrix(subjects []core.SubjectID, features []core.FeatureKey, data [][]float64) (*Matrix, error) {
	if len(data) != len(subjects) {
		return nil, core.NewValidationError("abundance",
			fmt.Sprintf("%d data rows for %d subjects", len(data), len(subjects)))
	}
	for i, row := range data {
		if len(row) != len(features) {
			return nil, core.NewValidationError("abundance",
				fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), len(features)))
		}
	}
	idx := make(map[core.FeatureKey]int, len(features))
	for i, f := range features {
		idx[f] = i
	}
	return &Matrix{
		Data:         data,
		SubjectIDs:   subjects,
		FeatureKeys:  features,
		featureIndex: idx,
	}, nil
}

// Feature returns the column values for a feature key
func (m *Matrix) Feature(key core.FeatureKey) ([]float64, bool) {
	col, ok := m.featureIndex[key]
	if !ok {
		return nil, false
	}
	return m.FeatureAt(col), true
}

// FeatureAt returns the column values at an index
func (m *Matrix) FeatureAt(col int) []float64 {
	values := make([]float64, len(m.Data))
	for i, row := range m.Data {
		values[i] = row[col]
	}
	return values
}

// RowCount returns the number of subjects
func (m *Matrix) RowCount() int {
	return len(m.Data)
}

// FeatureCount returns the number of microbial features
func (m *Matrix) FeatureCount() int {
	return len(m.FeatureKeys)
}

// Select returns a new matrix restricted to the given row indices, in order
func (m *Matrix) Select(rows []int) *Matrix {
	subjects := make([]core.SubjectID, len(rows))
	data := make([][]float64, len(rows))
	for i, r := range rows {
		subjects[i] = m.SubjectIDs[r]
		data[i] = m.Data[r]
	}
	out, _ := NewMatrix(subjects, m.FeatureKeys, data)
	return out
}

// JoinReport records which subjects the inner join excluded
type JoinReport struct {
	Joined        int              `json:"joined"`
	MetadataOnly  []core.SubjectID `json:"metadata_only,omitempty"`
	AbundanceOnly []core.SubjectID `json:"abundance_only,omitempty"`
}

// Dropped returns the total number of excluded subjects
func (r JoinReport) Dropped() int {
	return len(r.MetadataOnly) + len(r.AbundanceOnly)
}

// Bundle is the canonical joined cohort: the single input to every
// downstream statistical computation
type Bundle struct {
	Metadata  *Table
	Abundance *Matrix

	Report   JoinReport
	Warnings []WarningCode

	Fingerprint core.CohortHash
	CreatedAt   core.Timestamp
}

// InnerJoin aligns metadata and abundance on subject ID. Subjects present in
// only one table are dropped and recorded in the join report, never errored.
// Metadata row order drives the joined order so repeated runs are identical.
func InnerJoin(metadata *Table, abundance *Matrix) (*Bundle, error) {
	abundanceRows := make(map[core.SubjectID]int, len(abundance.SubjectIDs))
	for i, id := range abundance.SubjectIDs {
		abundanceRows[id] = i
	}

	var metaRows, abundRows []int
	var report JoinReport
	joined := make(map[core.SubjectID]bool)
	for i, id := range metadata.SubjectIDs {
		j, ok := abundanceRows[id]
		if !ok {
			report.MetadataOnly = append(report.MetadataOnly, id)
			continue
		}
		metaRows = append(metaRows, i)
		abundRows = append(abundRows, j)
		joined[id] = true
	}
	for _, id := range abundance.SubjectIDs {
		if !joined[id] {
			report.AbundanceOnly = append(report.AbundanceOnly, id)
		}
	}
	report.Joined = len(metaRows)

	if report.Joined == 0 {
		return nil, core.ErrEmptyCohort
	}

	b := &Bundle{
		Metadata:  metadata.Select(metaRows),
		Abundance: abundance.Select(abundRows),
		Report:    report,
		CreatedAt: core.Now(),
	}
	if report.Dropped() > 0 {
		b.Warnings = append(b.Warnings, WarningSubjectsDropped)
	}
	b.Fingerprint = b.computeFingerprint()
	return b, nil
}

// AuditComposition checks the relative-abundance invariants: negative entries
// are an error, row sums far from 1 only raise a warning. Compositions are
// audited, not enforced.
func (b *Bundle) AuditComposition(tolerance float64) error {
	deviates := false
	for i, row := range b.Abundance.Data {
		sum := 0.0
		for j, v := range row {
			if v < 0 {
				return fmt.Errorf("%w: subject %s, feature %s",
					core.ErrNegativeAbundance, b.Abundance.SubjectIDs[i], b.Abundance.FeatureKeys[j])
			}
			if !math.IsNaN(v) {
				sum += v
			}
		}
		if math.Abs(sum-1.0) > tolerance {
			deviates = true
		}
	}
	if deviates {
		b.Warnings = append(b.Warnings, WarningRowSumDeviates)
	}
	return nil
}

// RowCount returns the number of joined subjects
func (b *Bundle) RowCount() int {
	return b.Abundance.RowCount()
}

// computeFingerprint builds a deterministic hash over the joined cohort
func (b *Bundle) computeFingerprint() core.CohortHash {
	data := fmt.Sprintf("cohort|%d|%d", b.RowCount(), b.Abundance.FeatureCount())
	for _, id := range b.Abundance.SubjectIDs {
		data += "|" + id.String()
	}
	for _, f := range b.Abundance.FeatureKeys {
		data += "|" + f.String()
	}
	return core.CohortHash(core.NewHash([]byte(data)))
}
