package ports

import (
	"gobiome/domain/assoc"
)

// ResultWriterPort persists result tables to flat tabular output.
// Consumers (plotting, reporting) treat the written tables as read-only.
type ResultWriterPort interface {
	WriteResults(path string, table *assoc.ResultTable) error
	WriteComparison(path string, table *assoc.ComparisonTable) error
}
