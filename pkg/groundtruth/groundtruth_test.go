package groundtruth

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleJSON = `{
  "expected_findings": [
    {
      "category": "security",
      "severity": "high",
      "file": "app.py",
      "line_range": [10, 14],
      "description": "SQL injection via string formatting",
      "keywords": ["sql", "injection"],
      "consolidated_with": [1]
    },
    {
      "category": "security",
      "severity": "high",
      "file": "app.py",
      "line_range": [20, 22],
      "description": "Duplicate report of the same issue",
      "keywords": []
    }
  ],
  "expected_clean": false,
  "max_acceptable_findings": 3,
  "metadata": { "language": "python", "difficulty": "medium" }
}`

func TestLoadParsesAllFields(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(sampleJSON), 0644); err != nil {
		t.Fatal(err)
	}

	gt, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gt.ExpectedFindings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(gt.ExpectedFindings))
	}
	first := gt.ExpectedFindings[0]
	if first.File != "app.py" || first.LineStart != 10 || first.LineEnd != 14 {
		t.Errorf("unexpected first finding: %+v", first)
	}
	if len(first.ConsolidatedWith) != 1 || first.ConsolidatedWith[0] != 1 {
		t.Errorf("expected consolidated_with=[1], got %v", first.ConsolidatedWith)
	}
	if gt.ExpectedClean {
		t.Error("expected expected_clean=false")
	}
	if gt.MaxAcceptableFindings != 3 {
		t.Errorf("expected max_acceptable_findings=3, got %d", gt.MaxAcceptableFindings)
	}
	if gt.Language != "python" || gt.Difficulty != "medium" {
		t.Errorf("unexpected metadata: %+v", gt)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("expected Exists=false before file is written")
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(sampleJSON), 0644); err != nil {
		t.Fatal(err)
	}
	if !Exists(dir) {
		t.Error("expected Exists=true after file is written")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing ground_truth.json")
	}
}
