// Package resultparser extracts a structured findings list and duration
// from a per-run result markdown document.
package resultparser

import (
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

var (
	durationRe = regexp.MustCompile(`\|\s*Duration\s*\|\s*([\d.]+)s\s*\|`)
	stdoutRe   = regexp.MustCompile(`(?s)## stdout\s*\n` + "```" + `\s*\n(.*?)\n` + "```" + `\s*\n## stderr`)
	jsonRe     = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")
)

type rawFindings struct {
	Findings []rawFinding `json:"findings"`
}

type rawFinding struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Confidence  int    `json:"confidence"`
	File        string `json:"file"`
	LineRange   [2]int `json:"line_range"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`
}

// Parse extracts the findings list and duration from a full result
// markdown document. Missing or malformed JSON yields an empty findings
// list while still returning the duration; the duration defaults to 0.0
// when the Duration row is absent.
func Parse(text string) ([]model.Finding, float64) {
	duration := 0.0
	if m := durationRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			duration = v
		}
	}

	stdoutMatch := stdoutRe.FindStringSubmatch(text)
	if stdoutMatch == nil {
		return nil, duration
	}

	jsonMatch := jsonRe.FindStringSubmatch(stdoutMatch[1])
	if jsonMatch == nil {
		return nil, duration
	}

	var raw rawFindings
	if err := json.Unmarshal([]byte(jsonMatch[1]), &raw); err != nil {
		return nil, duration
	}

	findings := make([]model.Finding, 0, len(raw.Findings))
	for _, f := range raw.Findings {
		findings = append(findings, model.Finding{
			Category:    f.Category,
			Severity:    f.Severity,
			Confidence:  f.Confidence,
			File:        f.File,
			LineStart:   f.LineRange[0],
			LineEnd:     f.LineRange[1],
			Description: f.Description,
			Reasoning:   f.Reasoning,
		})
	}
	return findings, duration
}
