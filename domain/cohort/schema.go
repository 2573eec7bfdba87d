package cohort

import (
	"math"

	"gobiome/domain/core"
)

// Well-known metadata covariate keys. The loader types whatever columns the
// input carries; these names are the fixed schema the association models
// consume.
const (
	ColDisease     = core.ColumnKey("disease")
	ColAge         = core.ColumnKey("age")
	ColAgeCategory = core.ColumnKey("age_category")
	ColGender      = core.ColumnKey("gender")
	ColCountry     = core.ColumnKey("country")
	ColMetformin   = core.ColumnKey("metformin")
	ColBMI         = core.ColumnKey("bmi")
	ColCholesterol = core.ColumnKey("cholesterol")
	ColDiastolic   = core.ColumnKey("diastolic_pressure")
	ColSystolic    = core.ColumnKey("systolic_pressure")
	ColSeqDepth    = core.ColumnKey("sequencing_depth")
)

// UnivariateCovariates is the single-term model: feature ~ disease
func UnivariateCovariates() []core.ColumnKey {
	return []core.ColumnKey{ColDisease}
}

// MultivariateCovariates is the fixed adjustment set for the multivariate
// model: disease plus the clinical and technical covariates
func MultivariateCovariates() []core.ColumnKey {
	return []core.ColumnKey{
		ColDisease,
		ColAge,
		ColAgeCategory,
		ColMetformin,
		ColBMI,
		ColCholesterol,
		ColDiastolic,
		ColSystolic,
		ColSeqDepth,
	}
}

// ValidateDiseaseLabel enforces the disease-label invariant: a binary 0/1
// column (NaN entries are tolerated and excluded by complete-case filtering)
func (t *Table) ValidateDiseaseLabel() error {
	values, err := t.Numeric(ColDisease)
	if err != nil {
		return err
	}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v != 0 && v != 1 {
			return core.NewValidationError(string(ColDisease),
				"label must be 0 or 1, got non-binary value at row "+t.SubjectIDs[i].String())
		}
	}
	return nil
}
