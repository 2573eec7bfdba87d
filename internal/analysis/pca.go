package analysis

import (
	"math"

	"gobiome/domain/cohort"
	"gobiome/domain/core"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCAResult holds the principal component decomposition of the abundance
// matrix, used by the PC1/PC2 scatter consumers
type PCAResult struct {
	Scores      [][]float64      `json:"scores"`      // rows=subjects, cols=components
	Variances   []float64        `json:"variances"`   // per-component variance
	Proportions []float64        `json:"proportions"` // variance share per component
	SubjectIDs  []core.SubjectID `json:"subject_ids"`
}

// ComputePCA centers and unit-variance scales the abundance matrix, then
// projects it onto its first `components` principal axes. Zero-variance
// features are centered but not scaled; missing entries are set to the column
// mean (zero after centering).
func ComputePCA(matrix *cohort.Matrix, components int) (*PCAResult, error) {
	n := matrix.RowCount()
	d := matrix.FeatureCount()
	if n < 2 || d == 0 {
		return nil, core.ErrInsufficientData
	}
	if components < 1 {
		components = 2
	}
	if components > d {
		components = d
	}
	if components > n {
		components = n
	}

	scaled := scaleMatrix(matrix)

	var pc stat.PC
	if ok := pc.PrincipalComponents(scaled, nil); !ok {
		return nil, core.NewValidationError("abundance", "principal component decomposition failed")
	}

	var vectors mat.Dense
	pc.VectorsTo(&vectors)
	variances := pc.VarsTo(nil)

	var projected mat.Dense
	projected.Mul(scaled, vectors.Slice(0, d, 0, components))

	scores := make([][]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = make([]float64, components)
		for j := 0; j < components; j++ {
			scores[i][j] = projected.At(i, j)
		}
	}

	total := 0.0
	for _, v := range variances {
		total += v
	}
	proportions := make([]float64, components)
	for j := 0; j < components; j++ {
		if total > 0 {
			proportions[j] = variances[j] / total
		}
	}

	return &PCAResult{
		Scores:      scores,
		Variances:   variances[:components],
		Proportions: proportions,
		SubjectIDs:  matrix.SubjectIDs,
	}, nil
}

// scaleMatrix centers each feature column and scales it to unit variance
func scaleMatrix(matrix *cohort.Matrix) *mat.Dense {
	n := matrix.RowCount()
	d := matrix.FeatureCount()
	out := mat.NewDense(n, d, nil)

	for j := 0; j < d; j++ {
		col := matrix.FeatureAt(j)
		mean, std := columnMoments(col)
		if std == 0 || math.IsNaN(std) {
			std = 1 // zero-variance columns are centered only
		}
		for i := 0; i < n; i++ {
			v := col[i]
			if math.IsNaN(v) {
				out.Set(i, j, 0) // column mean after centering
				continue
			}
			out.Set(i, j, (v-mean)/std)
		}
	}
	return out
}

func columnMoments(col []float64) (mean, std float64) {
	observed := dropNaN(col)
	if len(observed) == 0 {
		return 0, 1
	}
	mean, std = stat.MeanStdDev(observed, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}
