// Package fdr implements false-discovery-rate adjustment passes over batches
// of raw p-values. The batch is adjusted exactly once, after all per-feature
// results are collected; the API takes the raw batch and returns a fresh
// adjusted slice, so published results are never partially re-adjusted.
package fdr

import (
	"math"
	"sort"

	"gobiome/domain/assoc"
)

// Adjust applies the named correction method across a batch of raw p-values
// and returns the adjusted values in input order. NaN inputs (failed fits) are
// excluded from the batch size m and propagate NaN outputs.
func Adjust(method assoc.FDRMethod, pvalues []float64) []float64 {
	switch method {
	case assoc.FDRBenjaminiHochberg:
		return stepUp(pvalues, 1.0)
	default:
		// Benjamini-Yekutieli: scale by the harmonic sum C(m), valid under
		// arbitrary dependence among the tests
		m := validCount(pvalues)
		return stepUp(pvalues, harmonicSum(m))
	}
}

// BenjaminiYekutieli adjusts a batch under arbitrary dependence
func BenjaminiYekutieli(pvalues []float64) []float64 {
	return Adjust(assoc.FDRBenjaminiYekutieli, pvalues)
}

// BenjaminiHochberg adjusts a batch under independence/PRDS
func BenjaminiHochberg(pvalues []float64) []float64 {
	return Adjust(assoc.FDRBenjaminiHochberg, pvalues)
}

// stepUp runs the standard step-up enforcement: for p-values sorted ascending,
// adjusted p_(i) = min over j>=i of { p_(j) * m * scale / j }, clipped to 1.
func stepUp(pvalues []float64, scale float64) []float64 {
	adjusted := make([]float64, len(pvalues))

	// Rank only the defined p-values; NaN rows keep NaN.
	order := make([]int, 0, len(pvalues))
	for i, p := range pvalues {
		if math.IsNaN(p) {
			adjusted[i] = math.NaN()
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pvalues[order[a]] < pvalues[order[b]]
	})

	m := float64(len(order))
	runningMin := math.Inf(1)
	for rank := len(order); rank >= 1; rank-- {
		idx := order[rank-1]
		adj := pvalues[idx] * m * scale / float64(rank)
		if adj < runningMin {
			runningMin = adj
		}
		adjusted[idx] = math.Min(runningMin, 1.0)
	}
	return adjusted
}

// harmonicSum returns C(m) = sum over k=1..m of 1/k
func harmonicSum(m int) float64 {
	c := 0.0
	for k := 1; k <= m; k++ {
		c += 1.0 / float64(k)
	}
	return c
}

func validCount(pvalues []float64) int {
	n := 0
	for _, p := range pvalues {
		if !math.IsNaN(p) {
			n++
		}
	}
	return n
}
