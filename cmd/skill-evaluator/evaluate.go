package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jihwankim/skill-evaluator/pkg/groundtruth"
	"github.com/jihwankim/skill-evaluator/pkg/matcher"
	"github.com/jihwankim/skill-evaluator/pkg/model"
	"github.com/jihwankim/skill-evaluator/pkg/reporting"
	"github.com/jihwankim/skill-evaluator/pkg/resultparser"
	"github.com/jihwankim/skill-evaluator/pkg/scorer"
	"github.com/jihwankim/skill-evaluator/pkg/trialagg"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <results-dir>",
	Args:  cobra.ExactArgs(1),
	Short: "Score per-run result markdown files against scenario ground truth",
	Long: `Discovers result markdown files written by "run" (either a flat
per-skill layout, or a trial-<n>/ layout for multi-trial runs), matches
findings against each scenario's ground_truth.json, and writes a scored
report JSON.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().String("scenarios", "", "scenarios directory (required)")
	evaluateCmd.Flags().String("model", "claude-sonnet-4-5", "LLM model id for the Stage 2 fallback matcher")
	evaluateCmd.Flags().String("output", "report.json", "path to write the report JSON to")
	evaluateCmd.Flags().String("env-file", ".env", "path to a .env file containing ANTHROPIC_API_KEY")

	_ = evaluateCmd.MarkFlagRequired("scenarios")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	resultsDir := args[0]
	flags := cmd.Flags()
	scenariosDir, _ := flags.GetString("scenarios")
	modelID, _ := flags.GetString("model")
	outputPath, _ := flags.GetString("output")
	envFile, _ := flags.GetString("env-file")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logLevel := cfg.Framework.LogLevel
	if verbose {
		logLevel = "debug"
	}
	logger := reporting.InitGlobalLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})

	fileEnv, err := loadEnvFile(envFile)
	if err != nil {
		return err
	}
	apiKey := fileEnv["ANTHROPIC_API_KEY"]
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY not set in env or %s", envFile)
	}
	client := matcher.NewAnthropicClient(apiKey, anthropic.Model(modelID))

	trialDirs, err := trialDirectories(resultsDir)
	if err != nil {
		return fmt.Errorf("failed to inspect results directory: %w", err)
	}

	ctx := context.Background()

	if len(trialDirs) == 0 {
		logger.Info().Str("results", resultsDir).Msg("evaluating single-pass results")
		scored, err := evaluateSkillDirs(ctx, client, resultsDir, scenariosDir)
		if err != nil {
			return err
		}
		return writeReport(outputPath, scored)
	}

	logger.Info().Int("trials", len(trialDirs)).Msg("evaluating multi-trial results")
	var trials [][]model.ScenarioResult
	for _, dir := range trialDirs {
		scored, err := evaluateSkillDirs(ctx, client, dir, scenariosDir)
		if err != nil {
			return err
		}
		trials = append(trials, scored)
	}

	trialResults, err := trialagg.Aggregate(trials)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	return writeTrialReport(outputPath, trialResults, trials)
}

// trialDirectories returns the sorted trial-<n>/ subdirectories of dir, or
// nil if dir has none (non-trial mode).
func trialDirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "trial-") {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		return trialNumber(dirs[i]) < trialNumber(dirs[j])
	})
	return dirs, nil
}

func trialNumber(dir string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), "trial-"))
	return n
}

// evalJob is one (result file, scenario) pair pending scoring.
type evalJob struct {
	mdFile       string
	scenarioDir  string
	scenarioName string
	skillName    string
}

// evaluateSkillDirs walks dir's per-skill subdirectories (each containing
// one *.md per scenario, per the matrix layout), then scores every result
// that has a matching scenario ground_truth.json concurrently — the LLM
// fallback calls a job may trigger are independent per spec.md §4.8's
// "all LLM calls for a batch may be issued concurrently".
func evaluateSkillDirs(ctx context.Context, client matcher.Client, dir, scenariosDir string) ([]model.ScenarioResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("evaluate: read %s: %w", dir, err)
	}

	var jobs []evalJob
	for _, e := range entries {
		skillDir := filepath.Join(dir, e.Name())
		var skillName string
		var mdFiles []string

		if e.IsDir() {
			skillName = e.Name()
			inner, err := os.ReadDir(skillDir)
			if err != nil {
				return nil, fmt.Errorf("evaluate: read %s: %w", skillDir, err)
			}
			for _, f := range inner {
				if !f.IsDir() && strings.HasSuffix(f.Name(), ".md") {
					mdFiles = append(mdFiles, filepath.Join(skillDir, f.Name()))
				}
			}
		} else if strings.HasSuffix(e.Name(), ".md") {
			skillName = strings.TrimSuffix(e.Name(), ".md")
			mdFiles = append(mdFiles, filepath.Join(dir, e.Name()))
		} else {
			continue
		}

		for _, mdFile := range mdFiles {
			scenarioName := strings.TrimSuffix(filepath.Base(mdFile), ".md")
			scenarioDir := filepath.Join(scenariosDir, scenarioName)
			if !groundtruth.Exists(scenarioDir) {
				continue
			}
			jobs = append(jobs, evalJob{mdFile: mdFile, scenarioDir: scenarioDir, scenarioName: scenarioName, skillName: skillName})
		}
	}

	scored := make([]model.ScenarioResult, len(jobs))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		group.Go(func() error {
			result, err := scoreOneResult(groupCtx, client, job.mdFile, job.scenarioDir, job.scenarioName, job.skillName)
			if err != nil {
				return err
			}
			scored[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

func scoreOneResult(ctx context.Context, client matcher.Client, mdFile, scenarioDir, scenarioName, skillName string) (model.ScenarioResult, error) {
	data, err := os.ReadFile(mdFile)
	if err != nil {
		return model.ScenarioResult{}, fmt.Errorf("evaluate: read %s: %w", mdFile, err)
	}
	findings, duration := resultparser.Parse(string(data))

	gt, err := groundtruth.Load(scenarioDir)
	if err != nil {
		return model.ScenarioResult{}, fmt.Errorf("evaluate: %w", err)
	}

	matches, err := matcher.Match(ctx, client, findings, gt.ExpectedFindings)
	if err != nil {
		return model.ScenarioResult{}, fmt.Errorf("evaluate: match %s/%s: %w", skillName, scenarioName, err)
	}

	return scorer.Score(scenarioName, skillName, findings, gt, matches, duration), nil
}

// writeReport writes the single-pass report: scenarios is []ScenarioResult,
// aggregate is a plain AggregateJSON.
func writeReport(path string, scenarios []model.ScenarioResult) error {
	report := reporting.ReportJSON{
		Scenarios: scenarios,
		Aggregate: aggregateJSON(scenarios),
	}
	if err := reporting.WriteReport(path, report); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// writeTrialReport writes the multi-trial report per §6: scenarios is
// []ScenarioTrialResult (already MetricStats-shaped), and aggregate lifts
// every cross-scenario total/ratio to a MetricStats across trials too,
// rather than reusing the per-pair-mean summary SummarizeScenarios computes
// for human-readable printing.
func writeTrialReport(path string, trialResults []model.ScenarioTrialResult, trials [][]model.ScenarioResult) error {
	report := reporting.ReportJSON{
		Scenarios: trialResults,
		Aggregate: aggregateTrialJSON(trials),
		Trials:    len(trials),
	}
	if err := reporting.WriteReport(path, report); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// aggregateTrialJSON computes the single-pass cross-scenario aggregate for
// each trial independently, then lifts every one of those metrics to a
// MetricStats across trials.
func aggregateTrialJSON(trials [][]model.ScenarioResult) reporting.AggregateTrialJSON {
	n := len(trials)
	totalTP := make([]float64, n)
	totalFP := make([]float64, n)
	totalFN := make([]float64, n)
	totalDup := make([]float64, n)
	precision := make([]float64, n)
	recall := make([]float64, n)
	f05 := make([]float64, n)
	avgDuration := make([]float64, n)
	medianDuration := make([]float64, n)

	for i, t := range trials {
		agg := aggregateJSON(t)
		totalTP[i] = float64(agg.TotalTP)
		totalFP[i] = float64(agg.TotalFP)
		totalFN[i] = float64(agg.TotalFN)
		totalDup[i] = float64(agg.TotalDuplicates)
		precision[i] = agg.Precision
		recall[i] = agg.Recall
		f05[i] = agg.F05
		avgDuration[i] = agg.AvgDuration
		medianDuration[i] = agg.MedianDuration
	}

	return reporting.AggregateTrialJSON{
		TotalTP:         trialagg.Stats(totalTP),
		TotalFP:         trialagg.Stats(totalFP),
		TotalFN:         trialagg.Stats(totalFN),
		TotalDuplicates: trialagg.Stats(totalDup),
		Precision:       trialagg.Stats(precision),
		Recall:          trialagg.Stats(recall),
		F05:             trialagg.Stats(f05),
		AvgDuration:     trialagg.Stats(avgDuration),
		MedianDuration:  trialagg.Stats(medianDuration),
	}
}

func aggregateJSON(scenarios []model.ScenarioResult) reporting.AggregateJSON {
	var totalTP, totalFP, totalFN, totalDup int
	durations := make([]float64, 0, len(scenarios))
	for _, r := range scenarios {
		totalTP += r.TP
		totalFP += r.FP
		totalFN += r.FN
		totalDup += r.Duplicates
		durations = append(durations, r.DurationSec)
	}
	precision := ratio(totalTP, totalTP+totalFP)
	recall := ratio(totalTP, totalTP+totalFN)
	return reporting.AggregateJSON{
		TotalTP:         totalTP,
		TotalFP:         totalFP,
		TotalFN:         totalFN,
		TotalDuplicates: totalDup,
		Precision:       precision,
		Recall:          recall,
		F05:             fScore(precision, recall),
		AvgDuration:     mean(durations),
		MedianDuration:  median(durations),
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 1.0
	}
	return float64(num) / float64(den)
}

func fScore(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0.0
	}
	const betaSquared = 0.25
	return (1 + betaSquared) * precision * recall / (betaSquared*precision + recall)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
