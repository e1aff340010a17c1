package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jihwankim/skill-evaluator/pkg/discovery"
	"github.com/jihwankim/skill-evaluator/pkg/dockerrt"
	"github.com/jihwankim/skill-evaluator/pkg/memory"
	"github.com/jihwankim/skill-evaluator/pkg/model"
	"github.com/jihwankim/skill-evaluator/pkg/orchestrator"
	"github.com/jihwankim/skill-evaluator/pkg/promptloader"
	"github.com/jihwankim/skill-evaluator/pkg/reporting"
	"github.com/jihwankim/skill-evaluator/pkg/shutdown"
	"github.com/jihwankim/skill-evaluator/pkg/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run <skill-dir> [skill-dir...]",
	Args:  cobra.MinimumNArgs(1),
	Short: "Run one or more skills against optional scenarios in containers",
	Long: `Runs each skill directory (optionally crossed with each scenario
directory) inside its own container, streams live status, and writes a
per-run result markdown file under --output.`,
	RunE: runSkills,
}

func init() {
	runCmd.Flags().String("prompt", "", "prompt text, or path to a file containing it (required)")
	runCmd.Flags().String("image", "docker-skill-evaluator:minimal", "container image to run skills in")
	runCmd.Flags().String("memory", "1g", "per-container memory limit, e.g. 512m or 1g")
	runCmd.Flags().Int("timeout", 300, "per-container timeout in seconds")
	runCmd.Flags().Int("max-workers", 0, "max parallel containers (0 = auto, from host memory)")
	runCmd.Flags().String("env-file", ".env", "path to a .env file of environment variables")
	runCmd.Flags().StringArrayP("env", "e", nil, "environment variable KEY=VALUE (repeatable)")
	runCmd.Flags().String("flags", "", "extra command-line flags passed to the skill, shell-split")
	runCmd.Flags().StringArray("scenarios", nil, "scenario directories to cross with each skill (repeatable)")
	runCmd.Flags().String("output", "./results", "directory to write per-run result files to")
	runCmd.Flags().Int("trials", 1, "number of trials to run; trial-<n>/ prefixing kicks in when > 1")
	runCmd.Flags().String("name", "", "override display name applied uniformly to every skill")
	runCmd.Flags().Bool("dry-run", false, "resolve and validate inputs without launching containers")

	_ = runCmd.MarkFlagRequired("prompt")
}

func runSkills(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	promptFlag, _ := flags.GetString("prompt")
	image, _ := flags.GetString("image")
	memStr, _ := flags.GetString("memory")
	timeout, _ := flags.GetInt("timeout")
	maxWorkers, _ := flags.GetInt("max-workers")
	envFile, _ := flags.GetString("env-file")
	envPairs, _ := flags.GetStringArray("env")
	extraFlagsStr, _ := flags.GetString("flags")
	scenarioDirs, _ := flags.GetStringArray("scenarios")
	outputDir, _ := flags.GetString("output")
	trials, _ := flags.GetInt("trials")
	nameOverride, _ := flags.GetString("name")
	dryRun, _ := flags.GetBool("dry-run")

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

	prompt, err := promptloader.Load(promptFlag, "prompt.md")
	if err != nil {
		return fmt.Errorf("failed to resolve prompt: %w", err)
	}

	memBytes, err := memory.Parse(memStr)
	if err != nil {
		return fmt.Errorf("invalid memory limit: %w", err)
	}

	skills, err := discovery.Skills(args, nameOverride)
	if err != nil {
		return fmt.Errorf("failed to discover skills: %w", err)
	}
	scenarios, err := discovery.Scenarios(scenarioDirs)
	if err != nil {
		return fmt.Errorf("failed to discover scenarios: %w", err)
	}

	fileEnv, err := loadEnvFile(envFile)
	if err != nil {
		return err
	}
	flagEnv, err := parseEnvPairs(envPairs)
	if err != nil {
		return err
	}
	env := mergeEnv(fileEnv, flagEnv)

	if env["CLAUDE_CODE_OAUTH_TOKEN"] == "" && os.Getenv("CLAUDE_CODE_OAUTH_TOKEN") == "" {
		return fmt.Errorf("CLAUDE_CODE_OAUTH_TOKEN not set in env, -e, or %s", envFile)
	}

	containerCfg := model.ContainerConfig{
		Image:           image,
		MemoryLimit:     memStr,
		MemoryLimitByte: memBytes,
		TimeoutSeconds:  timeout,
		Env:             env,
		Prompt:          prompt,
		ExtraFlags:      shellSplit(extraFlagsStr),
	}

	if dryRun {
		fmt.Printf("skill-evaluator: %d skill(s), %d scenario(s), image=%s memory=%s timeout=%ds\n",
			len(skills), len(scenarios), image, memStr, timeout)
		fmt.Println("dry-run: inputs resolved and validated, no containers launched")
		return nil
	}

	rt, err := dockerrt.New()
	if err != nil {
		return fmt.Errorf("failed to connect to container runtime: %w", err)
	}
	defer rt.Close()

	if maxWorkers < 1 {
		ctx := context.Background()
		totalMem, err := rt.HostMemTotal(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to read host memory, defaulting to 1 worker")
			maxWorkers = 1
		} else {
			maxWorkers = orchestrator.PlanWorkers(totalMem, memBytes)
		}
	}

	storage, err := reporting.NewStorage(outputDir)
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}
	printer := reporting.NewProgressPrinter(os.Stdout, verbose)

	sig := shutdown.New()
	stopWatching := shutdown.WatchSignals(sig)
	defer stopWatching()

	ctx := context.Background()

	allOK := true
	for trial := 1; trial <= max(trials, 1); trial++ {
		caches := telemetry.NewCaches()
		orch := orchestrator.New(rt, caches, printer, printer, logger)

		logger.Info().Int("trial", trial).Int("workers", maxWorkers).Msg("starting batch")
		results := orch.RunBatch(ctx, skills, scenarios, containerCfg, maxWorkers, sig)

		trialNum := 0
		if trials > 1 {
			trialNum = trial
		}
		if err := writeResults(storage, skills, scenarios, results, trialNum); err != nil {
			return err
		}

		for _, r := range results {
			if r.Error != "" {
				allOK = false
			}
		}

		if sig.Triggered() {
			break
		}
	}

	if !allOK {
		os.Exit(1)
	}
	return nil
}

// resultTarget is where a run result's label says it should be written.
type resultTarget struct {
	skillName    string
	scenarioName string
}

// writeResults routes RunBatch's result slice back onto (skill, scenario)
// pairs by label rather than by position: workers dispatch concurrently,
// so results arrive in completion order, not expandPairs' original order.
// Each pair is indexed under both the label the container runner assigns
// (skill directory name for scenario pairs, display name otherwise) and the label the orchestrator's interrupted
// short-circuit assigns (skill display name), since the two agree except
// when a --name override is in effect.
func writeResults(storage *reporting.Storage, skills []discovery.SkillConfig, scenarios []discovery.ScenarioConfig, results []model.RunResult, trial int) error {
	targets := make(map[string]resultTarget)
	for _, skill := range skills {
		dirName := filepath.Base(skill.Path)
		if len(scenarios) == 0 {
			targets[skill.Name] = resultTarget{skillName: skill.Name}
			targets[dirName] = resultTarget{skillName: skill.Name}
			continue
		}
		for _, scenario := range scenarios {
			target := resultTarget{skillName: skill.Name, scenarioName: scenario.Name}
			targets[skill.Name+"/"+scenario.Name] = target
			targets[dirName+"/"+scenario.Name] = target
		}
	}

	for _, result := range results {
		target, ok := targets[result.Label]
		if !ok {
			return fmt.Errorf("failed to route result %q to a known skill/scenario", result.Label)
		}
		if _, err := storage.WriteResult(result, target.skillName, target.scenarioName, trial); err != nil {
			return fmt.Errorf("failed to write result for %s: %w", result.Label, err)
		}
	}
	return nil
}
