// Package groundtruth loads a scenario's ground_truth.json fixture into
// the shared model.GroundTruth type.
package groundtruth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

const fileName = "ground_truth.json"

type rawGroundTruth struct {
	ExpectedFindings      []rawExpectedFinding `json:"expected_findings"`
	ExpectedClean         bool                 `json:"expected_clean"`
	MaxAcceptableFindings int                  `json:"max_acceptable_findings"`
	Metadata              rawMetadata          `json:"metadata"`
}

type rawExpectedFinding struct {
	Category         string   `json:"category"`
	Severity         string   `json:"severity"`
	File             string   `json:"file"`
	LineRange        [2]int   `json:"line_range"`
	Description      string   `json:"description"`
	Keywords         []string `json:"keywords"`
	ConsolidatedWith []int    `json:"consolidated_with"`
}

type rawMetadata struct {
	Language   string `json:"language"`
	Difficulty string `json:"difficulty"`
}

// Exists reports whether scenarioDir has a ground_truth.json fixture.
func Exists(scenarioDir string) bool {
	info, err := os.Stat(filepath.Join(scenarioDir, fileName))
	return err == nil && info.Mode().IsRegular()
}

// Load reads and parses scenarioDir's ground_truth.json.
func Load(scenarioDir string) (model.GroundTruth, error) {
	path := filepath.Join(scenarioDir, fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return model.GroundTruth{}, fmt.Errorf("groundtruth: read %s: %w", path, err)
	}

	var raw rawGroundTruth
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.GroundTruth{}, fmt.Errorf("groundtruth: parse %s: %w", path, err)
	}

	findings := make([]model.ExpectedFinding, 0, len(raw.ExpectedFindings))
	for _, ef := range raw.ExpectedFindings {
		findings = append(findings, model.ExpectedFinding{
			Category:         ef.Category,
			Severity:         ef.Severity,
			File:             ef.File,
			LineStart:        ef.LineRange[0],
			LineEnd:          ef.LineRange[1],
			Description:      ef.Description,
			Keywords:         ef.Keywords,
			ConsolidatedWith: ef.ConsolidatedWith,
		})
	}

	return model.GroundTruth{
		ExpectedFindings:      findings,
		ExpectedClean:         raw.ExpectedClean,
		MaxAcceptableFindings: raw.MaxAcceptableFindings,
		Language:              raw.Metadata.Language,
		Difficulty:            raw.Metadata.Difficulty,
	}, nil
}
