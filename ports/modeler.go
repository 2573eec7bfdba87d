package ports

import (
	"context"

	"gobiome/domain/assoc"
	"gobiome/domain/cohort"
)

// AssociationPort runs one per-feature regression sweep over a cohort
type AssociationPort interface {
	// RunSweep fits one model per feature and applies a single
	// multiple-testing correction pass across the batch. Per-feature fit
	// failures are recorded as NaN rows; the sweep itself never fails on them.
	RunSweep(ctx context.Context, bundle *cohort.Bundle, model assoc.ModelType) (*assoc.ResultTable, error)
}
