package tabular

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestReadTable_TrimsCells(t *testing.T) {
	path := writeFixture(t, "data.csv", "subject_id , value \n S1 , 3.5 \nS2,4.0\n")

	raw, err := NewDataReader(path).ReadTable()
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if raw.Headers[0] != "subject_id" || raw.Headers[1] != "value" {
		t.Errorf("headers not trimmed: %v", raw.Headers)
	}
	if raw.Rows[0]["subject_id"] != "S1" || raw.Rows[0]["value"] != "3.5" {
		t.Errorf("cells not trimmed: %v", raw.Rows[0])
	}
}

func TestReadTable_MissingFile(t *testing.T) {
	if _, err := NewDataReader("/nonexistent/data.csv").ReadTable(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadTable_HeaderOnly(t *testing.T) {
	path := writeFixture(t, "data.csv", "subject_id,value\n")
	if _, err := NewDataReader(path).ReadTable(); err == nil {
		t.Fatal("expected error for a table without data rows")
	}
}

func TestDetectSubjectColumn_PrefersCandidateNames(t *testing.T) {
	path := writeFixture(t, "data.csv", "age,sample_id,value\n30,S1,1\n40,S2,2\n")
	reader := NewDataReader(path)
	raw, err := reader.ReadTable()
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	col, err := reader.DetectSubjectColumn(raw)
	if err != nil {
		t.Fatalf("DetectSubjectColumn failed: %v", err)
	}
	if col != "sample_id" {
		t.Errorf("detected %q, want sample_id over positional fallback", col)
	}
}

func TestDetectSubjectColumn_RejectsDuplicateIDs(t *testing.T) {
	path := writeFixture(t, "data.csv", "subject_id,value\nS1,1\nS1,2\n")
	reader := NewDataReader(path)
	raw, err := reader.ReadTable()
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if _, err := reader.DetectSubjectColumn(raw); err == nil {
		t.Fatal("expected error when the candidate column has duplicate IDs")
	}
}
