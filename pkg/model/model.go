// Package model holds the data types shared across the run and evaluate
// pipelines: container configuration, observable status events, run
// results, findings, and scoring outputs.
package model

import "fmt"

// ContainerStatusState is the lifecycle state of a single run's container.
type ContainerStatusState string

const (
	StateStarting    ContainerStatusState = "starting"
	StateRunning     ContainerStatusState = "running"
	StateCompleted   ContainerStatusState = "completed"
	StateFailed      ContainerStatusState = "failed"
	StateTimeout     ContainerStatusState = "timeout"
	StateOOM         ContainerStatusState = "oom"
	StateInterrupted ContainerStatusState = "interrupted"
)

// Terminal reports whether s is one of the terminal states emitted exactly
// once, as the last event, for a run.
func (s ContainerStatusState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimeout, StateOOM, StateInterrupted:
		return true
	default:
		return false
	}
}

// Error tags carried in RunResult.Error.
const (
	ErrTimeout     = "timeout"
	ErrOOMKilled   = "oom_killed"
	ErrInterrupted = "interrupted"
)

// NonzeroExit formats the nonzero_exit:<N> error tag.
func NonzeroExit(code int) string {
	return fmt.Sprintf("nonzero_exit:%d", code)
}

// VolumeBinding is an extra host->container bind mount supplied by the
// caller, merged into the container runner's own mounts.
type VolumeBinding struct {
	ContainerPath string
	Mode          string // "ro" or "rw"
}

// ContainerConfig is shared, read-only configuration across every run in a
// batch.
type ContainerConfig struct {
	Image           string
	MemoryLimit     string // human form, e.g. "1g"
	MemoryLimitByte int64  // parsed byte count
	TimeoutSeconds  int
	Env             map[string]string
	Prompt          string
	ExtraFlags      []string
	ExtraVolumes    map[string]VolumeBinding // host path -> binding
}

// ContainerStatus is one observable lifecycle event for a run.
type ContainerStatus struct {
	Label         string
	State         ContainerStatusState
	HumanMemory   string
	ElapsedSecs   float64
	ContainerName string
}

// RunResult is the terminal outcome of one (skill, scenario?) pair.
type RunResult struct {
	Label       string
	ExitCode    int
	Stdout      string
	Stderr      string
	DurationSec float64
	Error       string // "" on success
	PeakMemory  int64
}

// Finding is one reported issue, as emitted by a skill.
type Finding struct {
	Category    string
	Severity    string
	Confidence  int
	File        string
	LineStart   int
	LineEnd     int
	Description string
	Reasoning   string
}

// Overlaps reports whether f is in file and its inclusive line range
// overlaps the inclusive range [start, end].
func (f Finding) Overlaps(file string, start, end int) bool {
	return f.File == file && f.LineStart <= end && start <= f.LineEnd
}

// ExpectedFinding is one ground-truth issue a scenario expects to be found.
type ExpectedFinding struct {
	Category         string
	Severity         string
	File             string
	LineStart        int
	LineEnd          int
	Description      string
	Keywords         []string
	ConsolidatedWith []int // sibling indices considered equivalent
}

// GroundTruth is the full expected-findings fixture for one scenario.
type GroundTruth struct {
	ExpectedFindings      []ExpectedFinding
	ExpectedClean         bool
	MaxAcceptableFindings int
	Language              string
	Difficulty            string
}

// ScenarioResult is the scored outcome for one (scenario, skill) pair.
type ScenarioResult struct {
	Scenario    string
	Skill       string
	TP          int
	FP          int
	FN          int
	Precision   float64
	Recall      float64
	F05         float64
	Duplicates  int
	DurationSec float64

	Findings          []Finding
	MatchedExpected   []int // indices into GroundTruth.ExpectedFindings
	UnmatchedFindings []Finding
}

// MetricStats is a mean/population-standard-deviation pair computed across
// trials.
type MetricStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// ScenarioTrialResult lifts every ScenarioResult metric to MetricStats
// across N trials.
type ScenarioTrialResult struct {
	Scenario string
	Skill    string
	Trials   int

	TruePositives  MetricStats
	FalsePositives MetricStats
	FalseNegatives MetricStats
	Duplicates     MetricStats
	Precision      MetricStats
	Recall         MetricStats
	F05            MetricStats
	DurationSec    MetricStats
}
