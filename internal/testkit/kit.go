package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"gobiome/domain/cohort"
	"gobiome/domain/core"
)

// CohortGeneratorConfig configures the synthetic cohort generator
type CohortGeneratorConfig struct {
	SubjectCount    int     `json:"subject_count"`
	NoiseFeatures   int     `json:"noise_features"`
	CaseFraction    float64 `json:"case_fraction"`
	SeparationShift float64 `json:"separation_shift"` // mean shift of the disease-linked feature
	ConfounderShift float64 `json:"confounder_shift"` // age effect on the confounded feature
	Seed            int64   `json:"seed"`
}

// DefaultCohortConfig returns a cohort large enough for stable sweep tests
func DefaultCohortConfig() CohortGeneratorConfig {
	return CohortGeneratorConfig{
		SubjectCount:    120,
		NoiseFeatures:   8,
		CaseFraction:    0.5,
		SeparationShift: 2.0,
		ConfounderShift: 0.05,
		Seed:            42,
	}
}

// Planted feature keys. disease_linked separates cases from controls
// directly; age_confounded tracks age, which itself tracks disease, so its
// univariate signal should vanish once age enters the model.
const (
	FeatureDiseaseLinked  core.FeatureKey = "g__disease_linked"
	FeatureAgeConfounded  core.FeatureKey = "g__age_confounded"
	NoiseFeaturePrefixFmt                 = "g__noise_%02d"
)

// CohortGenerator builds synthetic cohorts with known planted effects
type CohortGenerator struct {
	config CohortGeneratorConfig
	rng    *rand.Rand
}

// NewCohortGenerator creates a generator seeded from the config
func NewCohortGenerator(config CohortGeneratorConfig) *CohortGenerator {
	return &CohortGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds a joined cohort bundle. Cases are older on average, the
// disease-linked feature shifts with disease, the confounded feature shifts
// with age only, and the noise features carry no signal.
func (g *CohortGenerator) Generate() (*cohort.Bundle, error) {
	n := g.config.SubjectCount
	subjects := make([]core.SubjectID, n)
	disease := make([]float64, n)
	age := make([]float64, n)
	bmi := make([]float64, n)
	metformin := make([]float64, n)
	gender := make([]string, n)

	caseCount := int(math.Round(float64(n) * g.config.CaseFraction))
	for i := 0; i < n; i++ {
		subjects[i] = core.SubjectID(fmt.Sprintf("S%04d", i+1))
		if i < caseCount {
			disease[i] = 1
			age[i] = 58 + g.rng.NormFloat64()*8
			metformin[i] = float64(g.rng.Intn(2))
		} else {
			disease[i] = 0
			age[i] = 44 + g.rng.NormFloat64()*8
			metformin[i] = 0
		}
		bmi[i] = 26 + g.rng.NormFloat64()*3
		if g.rng.Float64() < 0.5 {
			gender[i] = "female"
		} else {
			gender[i] = "male"
		}
	}

	metadata := cohort.NewTable(subjects)
	if err := metadata.AddColumn(cohort.Column{
		Key: cohort.ColDisease, Type: cohort.TypeBinary, Values: disease,
	}); err != nil {
		return nil, err
	}
	if err := metadata.AddColumn(cohort.Column{
		Key: cohort.ColAge, Type: cohort.TypeNumeric, Values: age,
	}); err != nil {
		return nil, err
	}
	if err := metadata.AddColumn(cohort.Column{
		Key: cohort.ColBMI, Type: cohort.TypeNumeric, Values: bmi,
	}); err != nil {
		return nil, err
	}
	if err := metadata.AddColumn(cohort.Column{
		Key: cohort.ColMetformin, Type: cohort.TypeBinary, Values: metformin,
	}); err != nil {
		return nil, err
	}
	if err := metadata.AddColumn(cohort.Column{
		Key: cohort.ColGender, Type: cohort.TypeCategorical, Labels: gender,
	}); err != nil {
		return nil, err
	}

	features := g.featureKeys()
	data := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(features))
		row[0] = g.config.SeparationShift*disease[i] + g.rng.NormFloat64()
		row[1] = g.config.ConfounderShift*age[i] + g.rng.NormFloat64()
		for j := 2; j < len(features); j++ {
			row[j] = g.rng.NormFloat64()
		}
		data[i] = row
	}
	abundance, err := cohort.NewMatrix(subjects, features, data)
	if err != nil {
		return nil, err
	}

	return cohort.InnerJoin(metadata, abundance)
}

func (g *CohortGenerator) featureKeys() []core.FeatureKey {
	keys := []core.FeatureKey{FeatureDiseaseLinked, FeatureAgeConfounded}
	for i := 0; i < g.config.NoiseFeatures; i++ {
		keys = append(keys, core.FeatureKey(fmt.Sprintf(NoiseFeaturePrefixFmt, i+1)))
	}
	return keys
}
