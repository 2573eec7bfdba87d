package analysis

import (
	"math"
	"testing"

	"gobiome/domain/assoc"
	"gobiome/domain/core"
)

func resultTable(t *testing.T, model assoc.ModelType, rows []assoc.TermResult) *assoc.ResultTable {
	t.Helper()
	table, err := assoc.NewResultTable(model, "disease", assoc.FDRBenjaminiYekutieli, 0.05, rows)
	if err != nil {
		t.Fatalf("NewResultTable failed: %v", err)
	}
	return table
}

func row(feature core.FeatureKey, estimate, p, adjP float64) assoc.TermResult {
	return assoc.TermResult{
		Feature: feature, Term: "disease",
		Estimate: estimate, StdErr: 0.1, Statistic: estimate / 0.1,
		PValue: p, AdjPValue: adjP, SampleSize: 100,
	}
}

func TestCompare_RetentionVerdicts(t *testing.T) {
	univariate := resultTable(t, assoc.ModelUnivariate, []assoc.TermResult{
		row("g__retained", 1.2, 0.0001, 0.001),
		row("g__lost", 0.8, 0.002, 0.02),
		row("g__never_hit", 0.1, 0.4, 0.9),
	})
	multivariate := resultTable(t, assoc.ModelMultivariate, []assoc.TermResult{
		row("g__retained", 1.1, 0.0005, 0.004),
		row("g__lost", 0.1, 0.3, 0.8),
		row("g__never_hit", 0.1, 0.5, 0.95),
	})

	table, err := NewComparator().Compare(univariate, multivariate)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	// Only univariate hits enter the comparison
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2 univariate hits", len(table.Rows))
	}
	if table.LostCount() != 1 {
		t.Errorf("LostCount = %d, want 1", table.LostCount())
	}

	byFeature := make(map[core.FeatureKey]assoc.ComparisonRow)
	for _, r := range table.Rows {
		byFeature[r.Feature] = r
	}

	retained, ok := byFeature["g__retained"]
	if !ok || !retained.Retained {
		t.Error("g__retained should survive covariate adjustment")
	}
	lost, ok := byFeature["g__lost"]
	if !ok || lost.Retained {
		t.Error("g__lost should not survive covariate adjustment")
	}
	if !lost.HasMultivariate {
		t.Error("g__lost has a multivariate row and must be marked as such")
	}
	if _, ok := byFeature["g__never_hit"]; ok {
		t.Error("non-significant univariate features must not appear")
	}
}

// TestCompare_MissingMultivariateRow: a univariate hit with no multivariate
// counterpart still appears, with NaN multivariate fields
func TestCompare_MissingMultivariateRow(t *testing.T) {
	univariate := resultTable(t, assoc.ModelUnivariate, []assoc.TermResult{
		row("g__orphan", 1.5, 0.0001, 0.001),
	})
	multivariate := resultTable(t, assoc.ModelMultivariate, []assoc.TermResult{
		row("g__other", 0.2, 0.4, 0.9),
	})

	table, err := NewComparator().Compare(univariate, multivariate)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(table.Rows))
	}

	orphan := table.Rows[0]
	if orphan.HasMultivariate {
		t.Error("orphan must not claim a multivariate row")
	}
	if !math.IsNaN(orphan.MultivarEstimate) || !math.IsNaN(orphan.MultivarAdjP) {
		t.Error("missing multivariate fields must be NaN")
	}
	if orphan.Retained {
		t.Error("a feature without a multivariate fit cannot be retained")
	}
}

func TestCompare_RejectsSwappedModels(t *testing.T) {
	uni := resultTable(t, assoc.ModelUnivariate, nil)
	multi := resultTable(t, assoc.ModelMultivariate, nil)

	if _, err := NewComparator().Compare(multi, uni); err == nil {
		t.Fatal("expected error when tables are passed in the wrong order")
	}
}

func TestCompare_DeterministicFingerprint(t *testing.T) {
	uni := resultTable(t, assoc.ModelUnivariate, []assoc.TermResult{
		row("g__a", 1.0, 0.001, 0.01),
		row("g__b", -0.5, 0.003, 0.03),
	})
	multi := resultTable(t, assoc.ModelMultivariate, []assoc.TermResult{
		row("g__a", 0.9, 0.002, 0.02),
		row("g__b", -0.1, 0.2, 0.6),
	})

	first, err := NewComparator().Compare(uni, multi)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	second, err := NewComparator().Compare(uni, multi)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprints differ for identical inputs: %s vs %s",
			first.Fingerprint, second.Fingerprint)
	}
}
