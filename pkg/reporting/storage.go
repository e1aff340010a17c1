// Package reporting writes the on-disk artifacts the run and evaluate
// subcommands hand off through: per-run result markdown files and the
// evaluate pass's report JSON.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

// Storage writes per-run result files under an output directory, laid out
// per the run/evaluate handoff contract: "<output>/<skill>/<scenario>.md"
// in matrix mode, "<output>/<skill>.md" otherwise, optionally prefixed by
// "trial-<n>/" when running more than one trial.
type Storage struct {
	outputDir string
}

// NewStorage ensures outputDir exists and returns a Storage rooted there.
func NewStorage(outputDir string) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("reporting: create output dir %s: %w", outputDir, err)
	}
	return &Storage{outputDir: outputDir}, nil
}

// WriteResult renders result as the per-run markdown document and writes
// it to the appropriate path. scenarioName is empty for non-matrix runs.
// trial is 1-based; any trial > 0 is written under a trial-<n>/ prefix and
// a trial of 0 omits it (the caller passes 0 for single-trial batches).
func (s *Storage) WriteResult(result model.RunResult, skillName, scenarioName string, trial int) (string, error) {
	dir := s.outputDir
	if trial > 0 {
		dir = filepath.Join(dir, fmt.Sprintf("trial-%d", trial))
	}

	var path string
	if scenarioName != "" {
		dir = filepath.Join(dir, skillName)
		path = filepath.Join(dir, scenarioName+".md")
	} else {
		path = filepath.Join(dir, skillName+".md")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("reporting: create dir %s: %w", dir, err)
	}

	label := skillName
	if scenarioName != "" {
		label = skillName + "/" + scenarioName
	}

	if err := os.WriteFile(path, []byte(renderResultMarkdown(label, result)), 0644); err != nil {
		return "", fmt.Errorf("reporting: write %s: %w", path, err)
	}
	return path, nil
}

func renderResultMarkdown(label string, r model.RunResult) string {
	peak := "N/A"
	if r.PeakMemory > 0 {
		peak = formatMemory(r.PeakMemory)
	}
	errTag := "none"
	if r.Error != "" {
		errTag = r.Error
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", label)
	b.WriteString("| Field | Value |\n")
	b.WriteString("|-------|-------|\n")
	fmt.Fprintf(&b, "| Exit Code | %d |\n", r.ExitCode)
	fmt.Fprintf(&b, "| Duration | %.2fs |\n", r.DurationSec)
	fmt.Fprintf(&b, "| Peak Memory | %s |\n", peak)
	fmt.Fprintf(&b, "| Error | %s |\n\n", errTag)
	b.WriteString("## stdout\n\n```\n")
	b.WriteString(r.Stdout)
	b.WriteString("\n```\n\n")
	b.WriteString("## stderr\n\n```\n")
	b.WriteString(r.Stderr)
	b.WriteString("\n```\n")
	return b.String()
}

func formatMemory(bytes int64) string {
	const mib = 1 << 20
	const gib = 1 << 30
	if bytes >= gib {
		return fmt.Sprintf("%.1fG", float64(bytes)/float64(gib))
	}
	return fmt.Sprintf("%dM", bytes/mib)
}

// ReportJSON is the evaluate subcommand's output document, per §6. In
// single-pass mode Scenarios holds []model.ScenarioResult and Aggregate an
// AggregateJSON. In multi-trial mode (Trials > 0) Scenarios holds
// []model.ScenarioTrialResult and Aggregate an AggregateTrialJSON, with
// every metric lifted to a MetricStats {mean, std} pair across trials.
type ReportJSON struct {
	Scenarios any `json:"scenarios"`
	Aggregate any `json:"aggregate"`

	Trials int `json:"trials,omitempty"`
}

// AggregateJSON is the cross-scenario summary for a single-pass run.
type AggregateJSON struct {
	TotalTP         int     `json:"total_tp"`
	TotalFP         int     `json:"total_fp"`
	TotalFN         int     `json:"total_fn"`
	TotalDuplicates int     `json:"total_duplicates"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F05             float64 `json:"f05"`
	AvgDuration     float64 `json:"avg_duration"`
	MedianDuration  float64 `json:"median_duration"`
}

// AggregateTrialJSON is the cross-scenario summary for a multi-trial run:
// each of AggregateJSON's metrics, lifted to a mean/std pair across trials.
type AggregateTrialJSON struct {
	TotalTP         model.MetricStats `json:"total_tp"`
	TotalFP         model.MetricStats `json:"total_fp"`
	TotalFN         model.MetricStats `json:"total_fn"`
	TotalDuplicates model.MetricStats `json:"total_duplicates"`
	Precision       model.MetricStats `json:"precision"`
	Recall          model.MetricStats `json:"recall"`
	F05             model.MetricStats `json:"f05"`
	AvgDuration     model.MetricStats `json:"avg_duration"`
	MedianDuration  model.MetricStats `json:"median_duration"`
}

// WriteReport writes report as indented JSON to path.
func WriteReport(path string, report ReportJSON) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("reporting: marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("reporting: create dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("reporting: write %s: %w", path, err)
	}
	return nil
}
