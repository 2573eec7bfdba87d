package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

func TestParseSubjectID(t *testing.T) {
	id, err := ParseSubjectID("  S042  ")
	if err != nil {
		t.Fatalf("ParseSubjectID failed: %v", err)
	}
	if id != "S042" {
		t.Errorf("id = %q, want trimmed S042", id)
	}

	if _, err := ParseSubjectID("   "); err == nil {
		t.Error("blank subject ID must be rejected")
	}
}

func TestFeatureKeyRank(t *testing.T) {
	cases := []struct {
		key  FeatureKey
		want string
	}{
		{"g__Bacteroides", "g"},
		{"s__Bacteroides_vulgatus", "s"},
		{"unranked_feature", ""},
		{"__leading", ""},
	}
	for _, tc := range cases {
		if got := tc.key.Rank(); got != tc.want {
			t.Errorf("Rank(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestNewHashDeterminism(t *testing.T) {
	a := NewHash([]byte("cohort|145|650"))
	b := NewHash([]byte("cohort|145|650"))
	if a != b {
		t.Error("identical input must hash identically")
	}
	if a == NewHash([]byte("cohort|145|651")) {
		t.Error("different input must hash differently")
	}
}
