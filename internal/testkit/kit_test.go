package testkit

import (
	"testing"

	"gobiome/domain/cohort"
)

func TestCohortGenerator_Determinism(t *testing.T) {
	cfg := DefaultCohortConfig()
	first, err := NewCohortGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := NewCohortGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if first.Fingerprint != second.Fingerprint {
		t.Error("same seed must produce the same cohort fingerprint")
	}
	a, _ := first.Abundance.Feature(FeatureDiseaseLinked)
	b, _ := second.Abundance.Feature(FeatureDiseaseLinked)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("abundance values diverge at row %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestCohortGenerator_Shape(t *testing.T) {
	cfg := DefaultCohortConfig()
	cfg.SubjectCount = 40
	cfg.NoiseFeatures = 3

	bundle, err := NewCohortGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if bundle.RowCount() != 40 {
		t.Errorf("RowCount = %d, want 40", bundle.RowCount())
	}
	if bundle.Abundance.FeatureCount() != 5 {
		t.Errorf("FeatureCount = %d, want 2 planted + 3 noise", bundle.Abundance.FeatureCount())
	}
	if err := bundle.Metadata.ValidateDiseaseLabel(); err != nil {
		t.Errorf("generated disease label must validate: %v", err)
	}
}

func TestCohortGenerator_PlantedGroupDifference(t *testing.T) {
	bundle, err := NewCohortGenerator(DefaultCohortConfig()).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	disease, err := bundle.Metadata.Numeric(cohort.ColDisease)
	if err != nil {
		t.Fatal(err)
	}
	linked, _ := bundle.Abundance.Feature(FeatureDiseaseLinked)

	var caseSum, ctrlSum float64
	var caseN, ctrlN int
	for i, d := range disease {
		if d == 1 {
			caseSum += linked[i]
			caseN++
		} else {
			ctrlSum += linked[i]
			ctrlN++
		}
	}
	diff := caseSum/float64(caseN) - ctrlSum/float64(ctrlN)
	if diff < 1.0 {
		t.Errorf("planted separation too small: group-mean difference %v", diff)
	}
}
