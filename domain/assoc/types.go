package assoc

import (
	"fmt"
	"math"

	"gobiome/domain/core"
)

// ============================================================================
// STABLE PRIMITIVES
// ============================================================================

// ModelType defines which regression produced a result row
type ModelType string

const (
	ModelUnivariate   ModelType = "univariate"   // feature ~ disease
	ModelMultivariate ModelType = "multivariate" // feature ~ disease + covariates
)

// FDRMethod defines the multiple-testing correction applied to a batch
type FDRMethod string

const (
	FDRBenjaminiYekutieli FDRMethod = "BY" // valid under arbitrary dependence
	FDRBenjaminiHochberg  FDRMethod = "BH" // assumes independence or PRDS
)

// DefaultAlpha is the adjusted-p significance threshold
const DefaultAlpha = 0.05

// TermResult is one result row per (feature, model-term) pair.
// INVARIANTS:
// - SampleSize is the N actually used in the fit (after complete-case exclusion)
// - PValue in [0,1] or NaN when the fit failed
// - FitError is set exactly when the statistics are NaN
type TermResult struct {
	Feature    core.FeatureKey `json:"feature"`
	Term       string          `json:"term"`
	Estimate   float64         `json:"estimate"`
	StdErr     float64         `json:"std_err"`
	Statistic  float64         `json:"statistic"`
	PValue     float64         `json:"p_value"`
	AdjPValue  float64         `json:"adj_p_value"`
	SampleSize int             `json:"sample_size"`
	FitError   string          `json:"fit_error,omitempty"`
}

// Failed reports whether the underlying model fit was unusable
func (r TermResult) Failed() bool {
	return r.FitError != "" || math.IsNaN(r.PValue)
}

// SignificantAt reports whether the adjusted p-value clears the threshold
func (r TermResult) SignificantAt(alpha float64) bool {
	return !r.Failed() && !math.IsNaN(r.AdjPValue) && r.AdjPValue < alpha
}

// Direction returns the effect direction implied by the estimate's sign
// (positive = enriched in disease-positive subjects)
func (r TermResult) Direction() string {
	switch {
	case r.Failed() || r.Estimate == 0:
		return "none"
	case r.Estimate > 0:
		return "enriched"
	default:
		return "depleted"
	}
}

// NaNResult builds the sentinel row recorded for a failed per-feature fit
func NaNResult(feature core.FeatureKey, term string, n int, cause error) TermResult {
	nan := math.NaN()
	return TermResult{
		Feature:    feature,
		Term:       term,
		Estimate:   nan,
		StdErr:     nan,
		Statistic:  nan,
		PValue:     nan,
		AdjPValue:  nan,
		SampleSize: n,
		FitError:   cause.Error(),
	}
}

// ============================================================================
// RESULT TABLES
// ============================================================================

// ResultTable is one batch of per-feature results for a single model type,
// in input feature order. Rows are created once by the association engine and
// never mutated afterward except for the single adjusted-p-value pass.
type ResultTable struct {
	Model       ModelType    `json:"model"`
	Term        string       `json:"term"`
	FDRMethod   FDRMethod    `json:"fdr_method"`
	Alpha       float64      `json:"alpha"`
	Rows        []TermResult `json:"rows"`
	Fingerprint core.Hash    `json:"fingerprint"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

// NewResultTable creates a result table with validated rows
func NewResultTable(model ModelType, term string, method FDRMethod, alpha float64, rows []TermResult) (*ResultTable, error) {
	for _, r := range rows {
		if err := validateTermResult(r); err != nil {
			return nil, err
		}
	}
	t := &ResultTable{
		Model:     model,
		Term:      term,
		FDRMethod: method,
		Alpha:     alpha,
		Rows:      rows,
		CreatedAt: core.Now(),
	}
	t.Fingerprint = t.computeFingerprint()
	return t, nil
}

func validateTermResult(r TermResult) error {
	if r.Feature == "" {
		return core.NewValidationError("feature", "must be set")
	}
	if r.Term == "" {
		return core.NewValidationError("term", "must be set")
	}
	if !math.IsNaN(r.PValue) && (r.PValue < 0 || r.PValue > 1) {
		return core.NewValidationError("p_value",
			fmt.Sprintf("must be in [0,1], got %f for %s", r.PValue, r.Feature))
	}
	return nil
}

// Significant returns the rows clearing the table's alpha, in input order
func (t *ResultTable) Significant() []TermResult {
	var out []TermResult
	for _, r := range t.Rows {
		if r.SignificantAt(t.Alpha) {
			out = append(out, r)
		}
	}
	return out
}

// Row returns the result for a feature
func (t *ResultTable) Row(feature core.FeatureKey) (TermResult, bool) {
	for _, r := range t.Rows {
		if r.Feature == feature {
			return r, true
		}
	}
	return TermResult{}, false
}

// FailedCount returns the number of NaN rows recorded for failed fits
func (t *ResultTable) FailedCount() int {
	n := 0
	for _, r := range t.Rows {
		if r.Failed() {
			n++
		}
	}
	return n
}

// computeFingerprint builds a deterministic hash over the ordered rows
func (t *ResultTable) computeFingerprint() core.Hash {
	data := fmt.Sprintf("%s|%s|%s|%g", t.Model, t.Term, t.FDRMethod, t.Alpha)
	for _, r := range t.Rows {
		data += fmt.Sprintf("|%s:%x:%x:%x", r.Feature,
			math.Float64bits(r.Estimate), math.Float64bits(r.PValue), math.Float64bits(r.AdjPValue))
	}
	return core.NewHash([]byte(data))
}

// ============================================================================
// COMPARISON
// ============================================================================

// ComparisonRow pairs a univariate-significant feature with its multivariate
// counterpart. HasMultivariate is false (and the multivariate fields NaN) when
// the multivariate table carries no row for the feature.
type ComparisonRow struct {
	Feature          core.FeatureKey `json:"feature"`
	UnivarEstimate   float64         `json:"univar_estimate"`
	UnivarAdjP       float64         `json:"univar_adj_p"`
	MultivarEstimate float64         `json:"multivar_estimate"`
	MultivarAdjP     float64         `json:"multivar_adj_p"`
	HasMultivariate  bool            `json:"has_multivariate"`
	RetainedAt       float64         `json:"retained_at"` // alpha the retention verdict used
	Retained         bool            `json:"retained"`    // still significant after adjustment
}

// ComparisonTable reports which univariate hits survive covariate adjustment
type ComparisonTable struct {
	Alpha       float64         `json:"alpha"`
	Rows        []ComparisonRow `json:"rows"`
	Fingerprint core.Hash       `json:"fingerprint"`
	CreatedAt   core.Timestamp  `json:"created_at"`
}

// LostCount returns the number of univariate hits not retained after adjustment
func (t *ComparisonTable) LostCount() int {
	n := 0
	for _, r := range t.Rows {
		if !r.Retained {
			n++
		}
	}
	return n
}
