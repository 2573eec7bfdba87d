package app

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gobiome/adapters/stats/engine"
	"gobiome/domain/cohort"
	"gobiome/domain/core"
	"gobiome/internal/config"
	"gobiome/internal/testkit"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Data:   config.DataConfig{SumTolerance: 0.01},
		Model:  config.ModelConfig{Alpha: 0.05, FDRMethod: "BY", Workers: 2},
		Output: config.OutputConfig{Dir: t.TempDir(), ReportHTML: true},
	}
}

// TestExecuteWithBundle_ConfoundingScenario runs the full analysis over a
// generated cohort with two planted effects: a feature genuinely linked to
// disease and a feature that only tracks age. The disease-linked feature must
// survive covariate adjustment; the age-tracking one must shrink once age is
// in the model.
func TestExecuteWithBundle_ConfoundingScenario(t *testing.T) {
	cfg := testConfig(t)

	genCfg := testkit.DefaultCohortConfig()
	genCfg.ConfounderShift = 0.1
	bundle, err := testkit.NewCohortGenerator(genCfg).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	eng := engine.NewAssociationEngine(engine.WithWorkers(cfg.Model.Workers))
	service := NewPipelineService(nil, eng, cfg)

	result, err := service.ExecuteWithBundle(context.Background(), core.NewRunID(), bundle, time.Now())
	if err != nil {
		t.Fatalf("ExecuteWithBundle failed: %v", err)
	}

	if result.Subjects != genCfg.SubjectCount {
		t.Errorf("Subjects = %d, want %d", result.Subjects, genCfg.SubjectCount)
	}
	if result.Features != genCfg.NoiseFeatures+2 {
		t.Errorf("Features = %d, want %d", result.Features, genCfg.NoiseFeatures+2)
	}

	uniLinked, ok := result.Univariate.Row(testkit.FeatureDiseaseLinked)
	if !ok || !uniLinked.SignificantAt(cfg.Model.Alpha) {
		t.Errorf("disease-linked feature should be a univariate hit, adj p = %v", uniLinked.AdjPValue)
	}
	multiLinked, ok := result.Multivariate.Row(testkit.FeatureDiseaseLinked)
	if !ok || !multiLinked.SignificantAt(cfg.Model.Alpha) {
		t.Errorf("disease-linked feature should survive adjustment, adj p = %v", multiLinked.AdjPValue)
	}

	// The age-confounded feature's disease estimate must collapse once age
	// is adjusted for
	uniConf, ok := result.Univariate.Row(testkit.FeatureAgeConfounded)
	if !ok {
		t.Fatal("age-confounded feature missing from univariate results")
	}
	multiConf, ok := result.Multivariate.Row(testkit.FeatureAgeConfounded)
	if !ok {
		t.Fatal("age-confounded feature missing from multivariate results")
	}
	if math.Abs(multiConf.Estimate) >= math.Abs(uniConf.Estimate) {
		t.Errorf("adjustment should shrink the confounded estimate: univariate %v, multivariate %v",
			uniConf.Estimate, multiConf.Estimate)
	}

	// Comparison rows cover exactly the univariate hits
	if len(result.Comparison.Rows) != result.UnivariateHits {
		t.Errorf("comparison rows = %d, want %d univariate hits",
			len(result.Comparison.Rows), result.UnivariateHits)
	}
}

// TestExecuteWithBundle_TenSubjectConfounding pins the canonical small
// scenario with exact hand-built values: feature A differs between groups by
// a fixed offset, feature B is a pure function of age (which itself separates
// the groups), and feature C is orthogonal to both disease and age. Both A
// and B are univariate hits; after adjusting for age only A survives.
func TestExecuteWithBundle_TenSubjectConfounding(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.ReportHTML = false

	subjects := make([]core.SubjectID, 10)
	for i := range subjects {
		subjects[i] = core.SubjectID([]string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10"}[i])
	}
	disease := []float64{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}
	age := []float64{60, 62, 64, 66, 68, 40, 42, 44, 46, 48}

	metadata := cohort.NewTable(subjects)
	if err := metadata.AddColumn(cohort.Column{Key: cohort.ColDisease, Type: cohort.TypeBinary, Values: disease}); err != nil {
		t.Fatal(err)
	}
	if err := metadata.AddColumn(cohort.Column{Key: cohort.ColAge, Type: cohort.TypeNumeric, Values: age}); err != nil {
		t.Fatal(err)
	}

	jitterA := []float64{0.1, -0.1, 0.2, -0.2, 0, 0.1, -0.1, 0.2, -0.2, 0}
	jitterB := []float64{0.05, -0.05, 0.05, -0.05, 0, -0.05, 0.05, -0.05, 0.05, 0}
	noiseC := []float64{1, 2, 3, 2, 1, 1, 2, 3, 2, 1}

	features := []core.FeatureKey{"g__direct", "g__confounded", "g__noise"}
	data := make([][]float64, 10)
	for i := 0; i < 10; i++ {
		data[i] = []float64{
			4*disease[i] + jitterA[i],
			0.1*age[i] + jitterB[i],
			noiseC[i],
		}
	}
	abundance, err := cohort.NewMatrix(subjects, features, data)
	if err != nil {
		t.Fatal(err)
	}
	bundle, err := cohort.InnerJoin(metadata, abundance)
	if err != nil {
		t.Fatal(err)
	}

	service := NewPipelineService(nil, engine.NewAssociationEngine(), cfg)
	result, err := service.ExecuteWithBundle(context.Background(), core.NewRunID(), bundle, time.Now())
	if err != nil {
		t.Fatalf("ExecuteWithBundle failed: %v", err)
	}

	uniDirect, _ := result.Univariate.Row("g__direct")
	uniConf, _ := result.Univariate.Row("g__confounded")
	uniNoise, _ := result.Univariate.Row("g__noise")
	if !uniDirect.SignificantAt(0.05) {
		t.Errorf("direct feature should be a univariate hit, adj p = %v", uniDirect.AdjPValue)
	}
	if !uniConf.SignificantAt(0.05) {
		t.Errorf("confounded feature should be a univariate hit, adj p = %v", uniConf.AdjPValue)
	}
	if uniNoise.SignificantAt(0.05) {
		t.Errorf("noise feature should not be a univariate hit, adj p = %v", uniNoise.AdjPValue)
	}

	multiDirect, _ := result.Multivariate.Row("g__direct")
	multiConf, _ := result.Multivariate.Row("g__confounded")
	if !multiDirect.SignificantAt(0.05) {
		t.Errorf("direct feature should survive age adjustment, adj p = %v", multiDirect.AdjPValue)
	}
	if multiConf.SignificantAt(0.05) {
		t.Errorf("confounded feature should lose significance under age adjustment, adj p = %v", multiConf.AdjPValue)
	}

	if len(result.Comparison.Rows) != 2 {
		t.Fatalf("comparison rows = %d, want the 2 univariate hits", len(result.Comparison.Rows))
	}
	if result.Comparison.LostCount() != 1 {
		t.Errorf("LostCount = %d, want 1 (the confounded feature)", result.Comparison.LostCount())
	}
}

func TestExecuteWithBundle_WritesAllOutputs(t *testing.T) {
	cfg := testConfig(t)
	bundle, err := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	eng := engine.NewAssociationEngine()
	service := NewPipelineService(nil, eng, cfg)
	if _, err := service.ExecuteWithBundle(context.Background(), core.NewRunID(), bundle, time.Now()); err != nil {
		t.Fatalf("ExecuteWithBundle failed: %v", err)
	}

	for _, name := range []string{
		"univariate.csv", "multivariate.csv", "comparison.csv",
		"volcano_univariate.csv", "volcano_multivariate.csv", "pca_scores.csv", "report.html",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("expected output %s: %v", name, err)
		}
	}
}

// TestExecuteWithBundle_DeterministicFingerprint: identical cohorts give
// identical run fingerprints
func TestExecuteWithBundle_DeterministicFingerprint(t *testing.T) {
	run := func(t *testing.T) core.Hash {
		cfg := testConfig(t)
		cfg.Output.ReportHTML = false
		bundle, err := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		service := NewPipelineService(nil, engine.NewAssociationEngine(), cfg)
		result, err := service.ExecuteWithBundle(context.Background(), core.NewRunID(), bundle, time.Now())
		if err != nil {
			t.Fatalf("ExecuteWithBundle failed: %v", err)
		}
		return result.Fingerprint
	}

	if first, second := run(t), run(t); first != second {
		t.Errorf("fingerprints differ across identical runs: %s vs %s", first, second)
	}
}
