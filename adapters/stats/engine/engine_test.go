package engine

import (
	"context"
	"math"
	"testing"

	"gobiome/domain/assoc"
	"gobiome/domain/cohort"
	"gobiome/domain/core"
	"gobiome/internal/testkit"
)

// fixtureBundle builds a small cohort with three planted features: one that
// cleanly separates cases from controls, one flat across groups, and one with
// too many missing values to fit at all.
func fixtureBundle(t *testing.T) *cohort.Bundle {
	t.Helper()
	nan := math.NaN()
	subjects := []core.SubjectID{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"}

	metadata := cohort.NewTable(subjects)
	if err := metadata.AddColumn(cohort.Column{
		Key: cohort.ColDisease, Type: cohort.TypeBinary,
		Values: []float64{1, 1, 1, 1, 0, 0, 0, 0},
	}); err != nil {
		t.Fatalf("AddColumn failed: %v", err)
	}

	features := []core.FeatureKey{"g__separating", "g__flat", "g__sparse"}
	data := [][]float64{
		{5.1, 1, 2.5},
		{4.9, 2, nan},
		{5.2, 1, nan},
		{4.8, 2, nan},
		{1.1, 1, nan},
		{0.9, 2, nan},
		{1.2, 1, nan},
		{0.8, 2, 1.5},
	}
	abundance, err := cohort.NewMatrix(subjects, features, data)
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	bundle, err := cohort.InnerJoin(metadata, abundance)
	if err != nil {
		t.Fatalf("InnerJoin failed: %v", err)
	}
	return bundle
}

func TestRunSweep_SeparatingFeatureDetected(t *testing.T) {
	engine := NewAssociationEngine()
	table, err := engine.RunSweep(context.Background(), fixtureBundle(t), assoc.ModelUnivariate)
	if err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if len(table.Rows) != 3 {
		t.Fatalf("got %d rows, want one per feature", len(table.Rows))
	}

	sep, ok := table.Row("g__separating")
	if !ok {
		t.Fatal("separating feature missing from results")
	}
	if !sep.SignificantAt(assoc.DefaultAlpha) {
		t.Errorf("separating feature should be significant, adj p = %v", sep.AdjPValue)
	}
	if sep.Direction() != "enriched" {
		t.Errorf("direction = %q, want enriched", sep.Direction())
	}
	if sep.SampleSize != 8 {
		t.Errorf("sample size = %d, want 8", sep.SampleSize)
	}

	flat, _ := table.Row("g__flat")
	if flat.SignificantAt(assoc.DefaultAlpha) {
		t.Errorf("flat feature should not be significant, adj p = %v", flat.AdjPValue)
	}
	if math.Abs(flat.Estimate) > 1e-12 {
		t.Errorf("flat feature estimate = %v, want 0", flat.Estimate)
	}
}

// TestRunSweep_FailedFitContinuesBatch verifies one unusable feature yields a
// NaN row without aborting the sweep, and the adjustment batch size excludes it
func TestRunSweep_FailedFitContinuesBatch(t *testing.T) {
	engine := NewAssociationEngine()
	table, err := engine.RunSweep(context.Background(), fixtureBundle(t), assoc.ModelUnivariate)
	if err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	sparse, ok := table.Row("g__sparse")
	if !ok {
		t.Fatal("sparse feature missing from results")
	}
	if !sparse.Failed() {
		t.Fatal("sparse feature should record a failed fit")
	}
	if sparse.FitError == "" {
		t.Error("failed row must carry its fit error")
	}
	if !math.IsNaN(sparse.Estimate) || !math.IsNaN(sparse.PValue) || !math.IsNaN(sparse.AdjPValue) {
		t.Error("failed row statistics must be NaN")
	}
	if sparse.SampleSize != 2 {
		t.Errorf("failed row sample size = %d, want 2 usable cases", sparse.SampleSize)
	}
	if table.FailedCount() != 1 {
		t.Errorf("FailedCount = %d, want 1", table.FailedCount())
	}

	// Two defined p-values: the flat feature's p=1 adjusts under m=2, not m=3
	flat, _ := table.Row("g__flat")
	if math.Abs(flat.AdjPValue-1.0) > 1e-12 {
		t.Errorf("flat adj p = %v, want 1", flat.AdjPValue)
	}
	sep, _ := table.Row("g__separating")
	c2 := 1.5 // C(2)
	wantAdj := math.Min(sep.PValue*2*c2, 1)
	if math.Abs(sep.AdjPValue-wantAdj) > 1e-12 {
		t.Errorf("separating adj p = %v, want %v", sep.AdjPValue, wantAdj)
	}
}

// TestRunSweep_DeterministicAcrossWorkerCounts: the result table is assembled
// in input feature order, so worker parallelism must not change anything
func TestRunSweep_DeterministicAcrossWorkerCounts(t *testing.T) {
	gen := testkit.NewCohortGenerator(testkit.DefaultCohortConfig())
	bundle, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	sequential, err := NewAssociationEngine(WithWorkers(1)).
		RunSweep(context.Background(), bundle, assoc.ModelUnivariate)
	if err != nil {
		t.Fatalf("sequential sweep failed: %v", err)
	}
	parallel, err := NewAssociationEngine(WithWorkers(8)).
		RunSweep(context.Background(), bundle, assoc.ModelUnivariate)
	if err != nil {
		t.Fatalf("parallel sweep failed: %v", err)
	}

	if sequential.Fingerprint != parallel.Fingerprint {
		t.Errorf("fingerprints differ across worker counts: %s vs %s",
			sequential.Fingerprint, parallel.Fingerprint)
	}
	for i := range sequential.Rows {
		if sequential.Rows[i].Feature != parallel.Rows[i].Feature {
			t.Fatalf("row %d feature order differs", i)
		}
	}
}

// TestRunSweep_MultivariateSkipsAbsentCovariates: a cohort without the full
// clinical covariate set still fits, adjusting for what is present
func TestRunSweep_MultivariateSkipsAbsentCovariates(t *testing.T) {
	gen := testkit.NewCohortGenerator(testkit.DefaultCohortConfig())
	bundle, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	table, err := NewAssociationEngine().RunSweep(context.Background(), bundle, assoc.ModelMultivariate)
	if err != nil {
		t.Fatalf("multivariate sweep failed: %v", err)
	}
	if table.Model != assoc.ModelMultivariate {
		t.Errorf("model = %s, want multivariate", table.Model)
	}
	if len(table.Rows) != bundle.Abundance.FeatureCount() {
		t.Errorf("got %d rows, want %d", len(table.Rows), bundle.Abundance.FeatureCount())
	}
}

func TestRunSweep_RejectsNonBinaryDisease(t *testing.T) {
	subjects := []core.SubjectID{"s1", "s2", "s3"}
	metadata := cohort.NewTable(subjects)
	if err := metadata.AddColumn(cohort.Column{
		Key: cohort.ColDisease, Type: cohort.TypeNumeric, Values: []float64{0, 1, 2},
	}); err != nil {
		t.Fatalf("AddColumn failed: %v", err)
	}
	abundance, err := cohort.NewMatrix(subjects, []core.FeatureKey{"g__x"}, [][]float64{{1}, {2}, {3}})
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	bundle, err := cohort.InnerJoin(metadata, abundance)
	if err != nil {
		t.Fatalf("InnerJoin failed: %v", err)
	}

	if _, err := NewAssociationEngine().RunSweep(context.Background(), bundle, assoc.ModelUnivariate); err == nil {
		t.Fatal("expected error for non-binary disease label")
	}
}
