// Package scorer computes precision/recall/F0.5 and duplicate counts from a
// matches vector, honoring consolidated-finding groups.
package scorer

import (
	"math"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

const (
	betaSquared  = 0.25
	dupTolerance = 3
)

// Score computes a ScenarioResult from a matches vector (one cell per
// finding: an expected index, or nil if unmatched).
func Score(scenario, skill string, findings []model.Finding, gt model.GroundTruth, matches []*int, duration float64) model.ScenarioResult {
	matchedSet := make(map[int]bool)
	for _, m := range matches {
		if m != nil {
			matchedSet[*m] = true
		}
	}

	credited := make(map[int]bool, len(matchedSet))
	for i := range matchedSet {
		credited[i] = true
		for _, sibling := range gt.ExpectedFindings[i].ConsolidatedWith {
			credited[sibling] = true
		}
	}

	tp := len(credited)
	fp := 0
	var unmatched []model.Finding
	for i, m := range matches {
		if m == nil {
			fp++
			unmatched = append(unmatched, findings[i])
		}
	}

	fn := len(gt.ExpectedFindings) - tp
	if fn < 0 {
		fn = 0
	}

	precision := ratio(tp, tp+fp)
	recall := ratio(tp, tp+fn)
	f05 := fScore(precision, recall)

	matchedIdx := make([]int, 0, len(credited))
	for i := range credited {
		matchedIdx = append(matchedIdx, i)
	}

	return model.ScenarioResult{
		Scenario:          scenario,
		Skill:             skill,
		TP:                tp,
		FP:                fp,
		FN:                fn,
		Precision:         precision,
		Recall:            recall,
		F05:               f05,
		Duplicates:        countDuplicates(findings),
		DurationSec:       duration,
		Findings:          findings,
		MatchedExpected:   matchedIdx,
		UnmatchedFindings: unmatched,
	}
}

// ratio returns num/den with the convention that 0/0 is 1.0.
func ratio(num, den int) float64 {
	if den == 0 {
		return 1.0
	}
	return float64(num) / float64(den)
}

// fScore computes the beta-weighted F-score with beta^2 = 0.25, defined as
// 0.0 when precision+recall is 0.
func fScore(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0.0
	}
	return (1 + betaSquared) * precision * recall / (betaSquared*precision + recall)
}

// countDuplicates counts unordered pairs of findings on the same file whose
// line-range endpoints differ by at most dupTolerance on both sides.
func countDuplicates(findings []model.Finding) int {
	count := 0
	for i := 0; i < len(findings); i++ {
		for j := i + 1; j < len(findings); j++ {
			a, b := findings[i], findings[j]
			if a.File != b.File {
				continue
			}
			if absInt(a.LineStart-b.LineStart) <= dupTolerance && absInt(a.LineEnd-b.LineEnd) <= dupTolerance {
				count++
			}
		}
	}
	return count
}

func absInt(n int) int {
	return int(math.Abs(float64(n)))
}
