package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jihwankim/skill-evaluator/pkg/discovery"
	"github.com/jihwankim/skill-evaluator/pkg/model"
	"github.com/jihwankim/skill-evaluator/pkg/reporting"
)

func TestWriteResultsRoutesByLabelNoScenarios(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	skills := []discovery.SkillConfig{
		{Path: "/skills/lint", Name: "lint"},
		{Path: "/skills/secure", Name: "secure"},
	}

	// Results arrive out of dispatch order, as a concurrent worker pool would.
	results := []model.RunResult{
		{Label: "secure", Stdout: "b"},
		{Label: "lint", Stdout: "a"},
	}

	if err := writeResults(storage, skills, nil, results, 0); err != nil {
		t.Fatal(err)
	}

	lintData, err := os.ReadFile(filepath.Join(dir, "lint.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(lintData), "a") {
		t.Errorf("lint.md does not contain its own stdout: %s", lintData)
	}

	secureData, err := os.ReadFile(filepath.Join(dir, "secure.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(secureData), "b") {
		t.Errorf("secure.md does not contain its own stdout: %s", secureData)
	}
}

func TestWriteResultsRoutesByDirNameWithOverride(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	skills := []discovery.SkillConfig{
		{Path: "/skills/lint-dir", Name: "custom-name"},
	}

	results := []model.RunResult{
		{Label: "lint-dir", Stdout: "via-dir-name"},
	}

	if err := writeResults(storage, skills, nil, results, 0); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "custom-name.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "via-dir-name") {
		t.Errorf("custom-name.md missing expected content: %s", data)
	}
}

func TestWriteResultsWithScenarios(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	skills := []discovery.SkillConfig{{Path: "/skills/lint", Name: "lint"}}
	scenarios := []discovery.ScenarioConfig{{Path: "/scenarios/sql-injection", Name: "sql-injection"}}

	results := []model.RunResult{
		{Label: "lint/sql-injection", Stdout: "matrix"},
	}

	if err := writeResults(storage, skills, scenarios, results, 0); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "lint", "sql-injection.md")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected result file at %s: %v", path, err)
	}
}

func TestWriteResultsUnknownLabelErrors(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	skills := []discovery.SkillConfig{{Path: "/skills/lint", Name: "lint"}}

	results := []model.RunResult{{Label: "unknown-skill"}}
	if err := writeResults(storage, skills, nil, results, 0); err == nil {
		t.Fatal("expected error for unrouteable label")
	}
}
