package tabular

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"gobiome/domain/cohort"
	"gobiome/domain/core"
	"gobiome/internal"
	"gobiome/internal/errors"
	"gobiome/ports"
)

// CohortLoader reads the metadata and abundance tables and joins them into a
// cohort bundle. Load-time failures are fatal; join mismatches are not.
type CohortLoader struct {
	sumTolerance float64
	log          *internal.Logger
}

// NewCohortLoader creates a cohort loader. sumTolerance bounds the allowed
// deviation of abundance row sums from 1 before a composition warning is
// raised.
func NewCohortLoader(sumTolerance float64) *CohortLoader {
	return &CohortLoader{sumTolerance: sumTolerance, log: internal.DefaultLogger}
}

var _ ports.CohortLoaderPort = (*CohortLoader)(nil)

// LoadCohort implements ports.CohortLoaderPort
func (l *CohortLoader) LoadCohort(ctx context.Context, req ports.CohortLoadRequest) (*cohort.Bundle, error) {
	metadata, err := l.loadMetadata(req.MetadataPath, req.SubjectColumn)
	if err != nil {
		return nil, errors.DataLoadError("metadata", err)
	}

	abundance, err := l.loadAbundance(req.AbundancePath, req.SubjectColumn)
	if err != nil {
		return nil, errors.DataLoadError("abundance", err)
	}

	bundle, err := cohort.InnerJoin(metadata, abundance)
	if err != nil {
		return nil, errors.DataLoadError("cohort", err)
	}
	if dropped := bundle.Report.Dropped(); dropped > 0 {
		l.log.Warn("[CohortLoader] inner join dropped %d subjects (%d metadata-only, %d abundance-only)",
			dropped, len(bundle.Report.MetadataOnly), len(bundle.Report.AbundanceOnly))
	}

	if err := bundle.AuditComposition(l.sumTolerance); err != nil {
		return nil, errors.DataLoadError("abundance", err)
	}
	l.auditQuality(bundle)

	l.log.Info("[CohortLoader] cohort loaded: %d subjects, %d covariates, %d features",
		bundle.RowCount(), bundle.Metadata.ColumnCount(), bundle.Abundance.FeatureCount())
	return bundle, nil
}

// highMissingFraction is the per-covariate missingness above which a
// data-quality warning is raised
const highMissingFraction = 0.3

// auditQuality flags covariates with heavy missingness and zero-variance
// features. Both are warnings only; the downstream fits handle them via
// complete-case exclusion and NaN result rows.
func (l *CohortLoader) auditQuality(bundle *cohort.Bundle) {
	n := bundle.RowCount()
	for _, col := range bundle.Metadata.Columns {
		missing := bundle.Metadata.MissingCount(col.Key)
		if float64(missing) > highMissingFraction*float64(n) {
			l.log.Warn("[CohortLoader] covariate %s has %d/%d missing entries", col.Key, missing, n)
			bundle.Warnings = append(bundle.Warnings, cohort.WarningHighMissing)
		}
	}
	for i, key := range bundle.Abundance.FeatureKeys {
		if isConstant(bundle.Abundance.FeatureAt(i)) {
			l.log.Warn("[CohortLoader] feature %s is constant across the joined cohort", key)
			bundle.Warnings = append(bundle.Warnings, cohort.WarningConstantFeature)
		}
	}
}

// isConstant reports whether all observed (non-NaN) values are identical
func isConstant(values []float64) bool {
	first := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(first) {
			first = v
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

// loadMetadata reads and types the per-subject covariate table
func (l *CohortLoader) loadMetadata(path, subjectColumn string) (*cohort.Table, error) {
	reader := NewDataReader(path)
	raw, err := reader.ReadTable()
	if err != nil {
		return nil, err
	}

	subjectCol, err := l.resolveSubjectColumn(reader, raw, subjectColumn)
	if err != nil {
		return nil, err
	}

	subjects := make([]core.SubjectID, len(raw.Rows))
	for i, row := range raw.Rows {
		id, err := core.ParseSubjectID(row[subjectCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		subjects[i] = id
	}

	table := cohort.NewTable(subjects)
	for _, header := range raw.Headers {
		if header == subjectCol || header == "" {
			continue
		}
		col := l.typeColumn(core.ColumnKey(header), raw.Rows)
		if err := table.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// loadAbundance reads the per-subject feature matrix; every non-key column
// must be numeric
func (l *CohortLoader) loadAbundance(path, subjectColumn string) (*cohort.Matrix, error) {
	reader := NewDataReader(path)
	raw, err := reader.ReadTable()
	if err != nil {
		return nil, err
	}

	subjectCol, err := l.resolveSubjectColumn(reader, raw, subjectColumn)
	if err != nil {
		return nil, err
	}

	var features []core.FeatureKey
	for _, header := range raw.Headers {
		if header == subjectCol || header == "" {
			continue
		}
		features = append(features, core.FeatureKey(header))
	}

	subjects := make([]core.SubjectID, len(raw.Rows))
	data := make([][]float64, len(raw.Rows))
	for i, row := range raw.Rows {
		id, err := core.ParseSubjectID(row[subjectCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		subjects[i] = id

		values := make([]float64, len(features))
		for j, feature := range features {
			cell := row[string(feature)]
			if cell == "" {
				values[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, feature %s: not numeric: %q", i+1, feature, cell)
			}
			values[j] = v
		}
		data[i] = values
	}

	return cohort.NewMatrix(subjects, features, data)
}

// resolveSubjectColumn uses the configured column or falls back to detection
func (l *CohortLoader) resolveSubjectColumn(reader *DataReader, raw *RawTable, configured string) (string, error) {
	if configured != "" {
		for _, header := range raw.Headers {
			if header == configured {
				return configured, nil
			}
		}
		return "", fmt.Errorf("%w: %q", core.ErrSubjectColumnMissing, configured)
	}
	detected, err := reader.DetectSubjectColumn(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrSubjectColumnMissing, err)
	}
	return detected, nil
}

// typeColumn infers the statistical type of a metadata column. A column is
// numeric when every non-empty value parses as a float, binary when the
// parsed values are a subset of {0,1}, categorical otherwise. Empty cells
// become NaN (numeric) or "" (categorical).
func (l *CohortLoader) typeColumn(key core.ColumnKey, rows []RawRowData) cohort.Column {
	values := make([]float64, len(rows))
	labels := make([]string, len(rows))
	numeric := true
	binary := true

	for i, row := range rows {
		cell := row[string(key)]
		labels[i] = cell
		if cell == "" {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			numeric = false
			continue
		}
		values[i] = v
		if v != 0 && v != 1 {
			binary = false
		}
	}

	if numeric {
		colType := cohort.TypeNumeric
		if binary {
			colType = cohort.TypeBinary
		}
		return cohort.Column{Key: key, Type: colType, Values: values}
	}
	return cohort.Column{Key: key, Type: cohort.TypeCategorical, Labels: labels}
}
