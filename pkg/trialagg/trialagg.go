// Package trialagg combines per-trial scenario results into mean/std
// metrics across trials, and a cross-scenario summary that aggregates
// counts before recomputing ratios.
package trialagg

import (
	"fmt"
	"math"
	"sort"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

// TrialSkillMismatchError reports that the trials disagree on which
// (scenario, skill) pairs were run.
type TrialSkillMismatchError struct {
	Trial int
	Want  []string
	Got   []string
}

func (e *TrialSkillMismatchError) Error() string {
	return fmt.Sprintf("trial %d: pair set mismatch (want %v, got %v)", e.Trial, e.Want, e.Got)
}

func pairKey(scenario, skill string) string { return scenario + "/" + skill }

// Aggregate validates that every trial covers the same (scenario, skill)
// pairs, then lifts each metric to a MetricStats per pair.
func Aggregate(trials [][]model.ScenarioResult) ([]model.ScenarioTrialResult, error) {
	if len(trials) == 0 {
		return nil, nil
	}

	reference := pairKeys(trials[0])
	for i, trial := range trials[1:] {
		got := pairKeys(trial)
		if !sameSet(reference, got) {
			return nil, &TrialSkillMismatchError{Trial: i + 1, Want: sortedKeys(reference), Got: sortedKeys(got)}
		}
	}

	byPair := make(map[string][]model.ScenarioResult)
	var order []string
	for _, r := range trials[0] {
		key := pairKey(r.Scenario, r.Skill)
		order = append(order, key)
	}
	for _, trial := range trials {
		for _, r := range trial {
			key := pairKey(r.Scenario, r.Skill)
			byPair[key] = append(byPair[key], r)
		}
	}

	out := make([]model.ScenarioTrialResult, 0, len(order))
	for _, key := range order {
		results := byPair[key]
		out = append(out, liftPair(results))
	}
	return out, nil
}

func liftPair(results []model.ScenarioResult) model.ScenarioTrialResult {
	n := len(results)
	tp := make([]float64, n)
	fp := make([]float64, n)
	fn := make([]float64, n)
	dup := make([]float64, n)
	precision := make([]float64, n)
	recall := make([]float64, n)
	f05 := make([]float64, n)
	duration := make([]float64, n)

	for i, r := range results {
		tp[i] = float64(r.TP)
		fp[i] = float64(r.FP)
		fn[i] = float64(r.FN)
		dup[i] = float64(r.Duplicates)
		precision[i] = r.Precision
		recall[i] = r.Recall
		f05[i] = r.F05
		duration[i] = r.DurationSec
	}

	return model.ScenarioTrialResult{
		Scenario:       results[0].Scenario,
		Skill:          results[0].Skill,
		Trials:         n,
		TruePositives:  stats(tp),
		FalsePositives: stats(fp),
		FalseNegatives: stats(fn),
		Duplicates:     stats(dup),
		Precision:      stats(precision),
		Recall:         stats(recall),
		F05:            stats(f05),
		DurationSec:    stats(duration),
	}
}

// Stats computes mean and population standard deviation across values. Std
// is 0 for N=1. Exported so callers lifting their own per-trial scalars
// (e.g. a cross-scenario aggregate) to MetricStats don't reimplement it.
func Stats(values []float64) model.MetricStats {
	return stats(values)
}

// stats computes mean and population standard deviation. Std is 0 for N=1.
func stats(values []float64) model.MetricStats {
	n := float64(len(values))
	if n == 0 {
		return model.MetricStats{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n

	return model.MetricStats{Mean: mean, Std: math.Sqrt(variance)}
}

// Summary is the cross-scenario aggregate for one trial aggregation: counts
// are summed across scenarios, then ratios are recomputed from the summed
// counts rather than averaged.
type Summary struct {
	TotalTP         float64
	TotalFP         float64
	TotalFN         float64
	TotalDuplicates float64
	Precision       float64
	Recall          float64
	F05             float64
	AvgDuration     float64
	MedianDuration  float64
}

// SummarizeScenarios sums the per-pair means and recomputes precision,
// recall, and F0.5 from the summed counts.
func SummarizeScenarios(pairs []model.ScenarioTrialResult) Summary {
	var totalTP, totalFP, totalFN, totalDup float64
	durations := make([]float64, 0, len(pairs))

	for _, p := range pairs {
		totalTP += p.TruePositives.Mean
		totalFP += p.FalsePositives.Mean
		totalFN += p.FalseNegatives.Mean
		totalDup += p.Duplicates.Mean
		durations = append(durations, p.DurationSec.Mean)
	}

	precision := ratio(totalTP, totalTP+totalFP)
	recall := ratio(totalTP, totalTP+totalFN)
	f05 := fScore(precision, recall)

	return Summary{
		TotalTP:         totalTP,
		TotalFP:         totalFP,
		TotalFN:         totalFN,
		TotalDuplicates: totalDup,
		Precision:       precision,
		Recall:          recall,
		F05:             f05,
		AvgDuration:     mean(durations),
		MedianDuration:  median(durations),
	}
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 1.0
	}
	return num / den
}

func fScore(precision, recall float64) float64 {
	const betaSquared = 0.25
	if precision+recall == 0 {
		return 0.0
	}
	return (1 + betaSquared) * precision * recall / (betaSquared*precision + recall)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func pairKeys(results []model.ScenarioResult) map[string]bool {
	keys := make(map[string]bool, len(results))
	for _, r := range results {
		keys[pairKey(r.Scenario, r.Skill)] = true
	}
	return keys
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
