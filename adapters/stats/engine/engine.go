// Package engine runs the per-feature association sweeps: one ordinary least
// squares fit per microbial feature against the disease label (univariate) or
// the fixed covariate set (multivariate), followed by a single
// multiple-testing correction pass over the feature batch.
package engine

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"

	"gobiome/adapters/stats/fdr"
	"gobiome/adapters/stats/ols"
	"gobiome/domain/assoc"
	"gobiome/domain/cohort"
	"gobiome/domain/core"
	"gobiome/internal"
	"gobiome/ports"
)

// AssociationEngine fits one model per feature over a joined cohort.
// Feature-level fits are independent and side-effect-free, so they run on a
// bounded worker pool; the final table is assembled in input feature order
// regardless of completion order.
type AssociationEngine struct {
	builder   *ols.DesignBuilder
	fdrMethod assoc.FDRMethod
	alpha     float64
	workers   int
	log       *internal.Logger
}

// Option configures an AssociationEngine
type Option func(*AssociationEngine)

// WithWorkers bounds the per-feature fit pool; 1 means sequential
func WithWorkers(n int) Option {
	return func(e *AssociationEngine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithFDRMethod selects the correction method (default Benjamini-Yekutieli)
func WithFDRMethod(method assoc.FDRMethod) Option {
	return func(e *AssociationEngine) { e.fdrMethod = method }
}

// WithAlpha sets the adjusted-p significance threshold
func WithAlpha(alpha float64) Option {
	return func(e *AssociationEngine) { e.alpha = alpha }
}

// WithReferenceLevel sets the categorical encoding reference level
func WithReferenceLevel(level string) Option {
	return func(e *AssociationEngine) { e.builder = ols.NewDesignBuilder(level) }
}

// NewAssociationEngine creates an engine with BY correction and a sequential
// fit loop unless configured otherwise
func NewAssociationEngine(opts ...Option) *AssociationEngine {
	e := &AssociationEngine{
		builder:   ols.NewDesignBuilder(""),
		fdrMethod: assoc.FDRBenjaminiYekutieli,
		alpha:     assoc.DefaultAlpha,
		workers:   1,
		log:       internal.DefaultLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.AssociationPort = (*AssociationEngine)(nil)

// RunSweep implements ports.AssociationPort. Per-feature fit failures
// (rank-deficient designs, exhausted degrees of freedom) are recorded as NaN
// rows and the remaining features keep processing.
func (e *AssociationEngine) RunSweep(ctx context.Context, bundle *cohort.Bundle, model assoc.ModelType) (*assoc.ResultTable, error) {
	if err := bundle.Metadata.ValidateDiseaseLabel(); err != nil {
		return nil, err
	}

	covariates := cohort.UnivariateCovariates()
	if model == assoc.ModelMultivariate {
		covariates = e.presentCovariates(bundle.Metadata, cohort.MultivariateCovariates())
	}

	// The design depends only on metadata, so it is built once and shared
	// read-only across the feature pool.
	design, err := e.builder.Build(bundle.Metadata, covariates)
	if err != nil {
		return nil, err
	}

	featureCount := bundle.Abundance.FeatureCount()
	results := make([]assoc.TermResult, featureCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < featureCount; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			feature := bundle.Abundance.FeatureKeys[i]
			y := bundle.Abundance.FeatureAt(i)
			results[i] = e.fitOne(design, feature, y)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Single adjustment pass across the whole batch, after all raw p-values
	// are collected. Count = number of features, not extracted terms.
	raw := make([]float64, featureCount)
	for i, r := range results {
		raw[i] = r.PValue
	}
	adjusted := fdr.Adjust(e.fdrMethod, raw)
	for i := range results {
		if !results[i].Failed() {
			results[i].AdjPValue = adjusted[i]
		}
	}

	table, err := assoc.NewResultTable(model, string(cohort.ColDisease), e.fdrMethod, e.alpha, results)
	if err != nil {
		return nil, err
	}
	e.log.Info("[AssociationEngine] %s sweep: %d features, %d failed fits, %d significant at %g",
		model, featureCount, table.FailedCount(), len(table.Significant()), e.alpha)
	return table, nil
}

// presentCovariates keeps the adjustment covariates the cohort actually
// carries. The disease label is mandatory and stays regardless; absent
// clinical covariates are logged and skipped rather than failing the sweep.
func (e *AssociationEngine) presentCovariates(table *cohort.Table, covariates []core.ColumnKey) []core.ColumnKey {
	kept := make([]core.ColumnKey, 0, len(covariates))
	for _, key := range covariates {
		if _, ok := table.Column(key); !ok && key != cohort.ColDisease {
			e.log.Warn("[AssociationEngine] covariate %s absent from cohort, adjusting without it", key)
			continue
		}
		kept = append(kept, key)
	}
	return kept
}

var errMissingDiseaseTerm = errors.New("fitted model has no disease-label term")

// fitOne fits a single feature and extracts the disease-label term
func (e *AssociationEngine) fitOne(design *ols.Design, feature core.FeatureKey, y []float64) assoc.TermResult {
	fit, err := ols.Fit(design, y)
	if err != nil {
		e.log.Debug("[AssociationEngine] feature %s: %v", feature, err)
		return assoc.NaNResult(feature, string(cohort.ColDisease), usableN(design, y), err)
	}
	term, ok := fit.Term(string(cohort.ColDisease))
	if !ok {
		return assoc.NaNResult(feature, string(cohort.ColDisease), fit.N, errMissingDiseaseTerm)
	}
	return assoc.TermResult{
		Feature:    feature,
		Term:       term.Term,
		Estimate:   term.Estimate,
		StdErr:     term.StdErr,
		Statistic:  term.Statistic,
		PValue:     term.PValue,
		AdjPValue:  math.NaN(), // set by the batch adjustment pass
		SampleSize: fit.N,
	}
}

// usableN counts the complete cases a failed fit would have used
func usableN(design *ols.Design, y []float64) int {
	n := 0
	for i, row := range design.Rows {
		if math.IsNaN(y[i]) {
			continue
		}
		complete := true
		for _, v := range row {
			if math.IsNaN(v) {
				complete = false
				break
			}
		}
		if complete {
			n++
		}
	}
	return n
}
