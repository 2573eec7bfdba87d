package ports

import (
	"context"

	"gobiome/domain/cohort"
)

// CohortLoaderPort resolves flat tabular input into a joined cohort bundle
type CohortLoaderPort interface {
	// LoadCohort reads the metadata and abundance tables and inner-joins
	// them on the subject-ID column
	LoadCohort(ctx context.Context, req CohortLoadRequest) (*cohort.Bundle, error)
}

// CohortLoadRequest defines the parameters for cohort resolution
type CohortLoadRequest struct {
	MetadataPath  string // metadata table, one row per subject
	AbundancePath string // abundance table, one row per subject
	SubjectColumn string // shared key column; auto-detected when empty
}
