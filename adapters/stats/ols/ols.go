package ols

import (
	"math"

	"gobiome/domain/core"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TermEstimate is the fitted row for one design term
type TermEstimate struct {
	Term      string
	Estimate  float64
	StdErr    float64
	Statistic float64
	PValue    float64
}

// FitResult holds an ordinary least squares fit
type FitResult struct {
	Terms []TermEstimate
	N     int     // complete cases used
	DF    int     // residual degrees of freedom, n - p
	RSS   float64 // residual sum of squares
}

// Term returns the estimate row for a named term
func (r *FitResult) Term(name string) (TermEstimate, bool) {
	for _, t := range r.Terms {
		if t.Term == name {
			return t, true
		}
	}
	return TermEstimate{}, false
}

// Fit solves the standard OLS formulas over the complete cases of (design, y):
// beta = (X'X)^-1 X'y, SE from the residual variance, t = beta/SE, two-sided
// p-value from the t-distribution with n-p degrees of freedom. Rows with a NaN
// response or any NaN design entry are excluded before fitting.
func Fit(design *Design, y []float64) (*FitResult, error) {
	if len(y) != design.N() {
		return nil, core.NewValidationError("response",
			"response length does not match design rows")
	}

	rows, resp := completeCases(design.Rows, y)
	n := len(rows)
	p := len(design.Terms)
	df := n - p
	if df <= 0 {
		return nil, core.ErrDegreesFreedom
	}

	x := mat.NewDense(n, p, nil)
	for i, row := range rows {
		x.SetRow(i, row)
	}
	yv := mat.NewVecDense(n, resp)

	// Normal equations: beta = (X'X)^-1 X'y. A singular cross-product marks
	// the design rank-deficient (e.g. a constant column after the join).
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, core.ErrRankDeficient
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), yv)
	var beta mat.VecDense
	beta.MulVec(&xtxInv, &xty)

	// Residual variance
	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	rss := 0.0
	for i := 0; i < n; i++ {
		r := resp[i] - fitted.AtVec(i)
		rss += r * r
	}
	sigma2 := rss / float64(df)

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	terms := make([]TermEstimate, p)
	for j := 0; j < p; j++ {
		est := beta.AtVec(j)
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		stat := est / se
		// Two-sided p; a perfect fit (se=0) drives |t| to infinity and p to 0
		pval := 2 * tDist.CDF(-math.Abs(stat))
		terms[j] = TermEstimate{
			Term:      design.Terms[j],
			Estimate:  est,
			StdErr:    se,
			Statistic: stat,
			PValue:    pval,
		}
	}

	return &FitResult{Terms: terms, N: n, DF: df, RSS: rss}, nil
}

// completeCases drops rows where the response or any design entry is NaN
func completeCases(rows [][]float64, y []float64) ([][]float64, []float64) {
	outRows := make([][]float64, 0, len(rows))
	outY := make([]float64, 0, len(y))
	for i, row := range rows {
		if math.IsNaN(y[i]) || hasNaN(row) {
			continue
		}
		outRows = append(outRows, row)
		outY = append(outY, y[i])
	}
	return outRows, outY
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
