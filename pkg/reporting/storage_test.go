package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

func TestWriteResultNonMatrixPath(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	path, err := s.WriteResult(model.RunResult{Stdout: "ok"}, "lint", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "lint.md") {
		t.Errorf("path = %s, want %s", path, filepath.Join(dir, "lint.md"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# lint") {
		t.Errorf("missing label header: %s", data)
	}
}

func TestWriteResultMatrixPath(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStorage(dir)
	path, err := s.WriteResult(model.RunResult{}, "lint", "sql-injection", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "lint", "sql-injection.md")
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
}

func TestWriteResultTrialPrefix(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStorage(dir)
	path, err := s.WriteResult(model.RunResult{}, "lint", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "trial-2", "lint.md")
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
}

func TestRenderResultMarkdownPeakMemoryNA(t *testing.T) {
	doc := renderResultMarkdown("lint", model.RunResult{PeakMemory: 0, Error: ""})
	if !strings.Contains(doc, "| Peak Memory | N/A |") {
		t.Errorf("expected N/A peak memory, got: %s", doc)
	}
	if !strings.Contains(doc, "| Error | none |") {
		t.Errorf("expected none error tag, got: %s", doc)
	}
}

func TestWriteReportWritesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	report := ReportJSON{
		Scenarios: []model.ScenarioResult{{Scenario: "sc", Skill: "sk", TP: 1}},
		Aggregate: AggregateJSON{TotalTP: 1, Precision: 1.0},
	}
	if err := WriteReport(path, report); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"total_tp": 1`) {
		t.Errorf("unexpected report content: %s", data)
	}
}
