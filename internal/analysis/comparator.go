package analysis

import (
	"fmt"
	"math"

	"gobiome/domain/assoc"
	"gobiome/domain/core"
	"gobiome/internal"
)

// Comparator joins univariate and multivariate results by feature name and
// reports which features lose or retain significance after covariate
// adjustment.
type Comparator struct {
	log *internal.Logger
}

// NewComparator creates a comparator
func NewComparator() *Comparator {
	return &Comparator{log: internal.DefaultLogger}
}

// Compare left-joins the univariate-significant features against the
// multivariate disease-term table. The univariate side drives: every
// significant univariate feature appears exactly once in the output, with the
// multivariate columns NaN when that feature's multivariate row is absent.
func (c *Comparator) Compare(univariate, multivariate *assoc.ResultTable) (*assoc.ComparisonTable, error) {
	if univariate.Model != assoc.ModelUnivariate {
		return nil, core.NewValidationError("univariate", "left table must hold univariate results")
	}
	if multivariate.Model != assoc.ModelMultivariate {
		return nil, core.NewValidationError("multivariate", "right table must hold multivariate results")
	}

	alpha := univariate.Alpha
	significant := univariate.Significant()
	rows := make([]assoc.ComparisonRow, 0, len(significant))

	for _, u := range significant {
		row := assoc.ComparisonRow{
			Feature:          u.Feature,
			UnivarEstimate:   u.Estimate,
			UnivarAdjP:       u.AdjPValue,
			MultivarEstimate: math.NaN(),
			MultivarAdjP:     math.NaN(),
			RetainedAt:       alpha,
		}
		if m, ok := multivariate.Row(u.Feature); ok {
			row.HasMultivariate = true
			row.MultivarEstimate = m.Estimate
			row.MultivarAdjP = m.AdjPValue
			row.Retained = m.SignificantAt(alpha)
		}
		rows = append(rows, row)
	}

	table := &assoc.ComparisonTable{
		Alpha:     alpha,
		Rows:      rows,
		CreatedAt: core.Now(),
	}
	table.Fingerprint = comparisonFingerprint(table)

	c.log.Info("[Comparator] %d univariate hits, %d retained after adjustment, %d lost",
		len(rows), len(rows)-table.LostCount(), table.LostCount())
	return table, nil
}

func comparisonFingerprint(t *assoc.ComparisonTable) core.Hash {
	data := fmt.Sprintf("comparison|%g", t.Alpha)
	for _, r := range t.Rows {
		data += fmt.Sprintf("|%s:%x:%x:%t", r.Feature,
			math.Float64bits(r.UnivarAdjP), math.Float64bits(r.MultivarAdjP), r.Retained)
	}
	return core.NewHash([]byte(data))
}
