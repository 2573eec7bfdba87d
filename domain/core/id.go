package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID      ID
	SubjectID  ID
	FeatureKey ID
	ColumnKey  ID
)

// NewRunID creates a new unique run identifier
func NewRunID() RunID {
	return RunID(NewID())
}

// String conversions for domain IDs
func (id RunID) String() string      { return ID(id).String() }
func (id SubjectID) String() string  { return ID(id).String() }
func (id FeatureKey) String() string { return ID(id).String() }
func (id ColumnKey) String() string  { return ID(id).String() }

// ParseSubjectID parses a string into SubjectID
func ParseSubjectID(s string) (SubjectID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("subject ID cannot be empty")
	}
	return SubjectID(strings.TrimSpace(s)), nil
}

// Rank returns the taxonomic rank prefix of a feature key (e.g. "g" for
// genus-level "g__Bacteroides"), or "" when the key carries no rank encoding.
func (id FeatureKey) Rank() string {
	s := string(id)
	if i := strings.Index(s, "__"); i > 0 {
		return s[:i]
	}
	return ""
}
