// Package containerrunner drives a single (skill, optional scenario) pair
// through its container lifecycle: create, mount, start, wait with timeout,
// collect logs, classify exit, guarantee cleanup.
package containerrunner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jihwankim/skill-evaluator/pkg/discovery"
	"github.com/jihwankim/skill-evaluator/pkg/dockerrt"
	"github.com/jihwankim/skill-evaluator/pkg/model"
	"github.com/jihwankim/skill-evaluator/pkg/shutdown"
)

const (
	workspaceDir  = "/workspace"
	skillsMount   = "/home/claude/.claude/skills"
	scenarioMount = "/tmp/scenario"
)

// Registry tracks containers currently in flight so a cooperative shutdown
// can ask each of them to stop. It is a mutex-guarded multi-writer set; the
// concrete implementation lives with the orchestrator.
type Registry interface {
	Register(name, id string)
	Unregister(name string)
}

// StatusObserver receives ContainerStatus events. Implementations must
// tolerate concurrent calls across different runs, but calls for the same
// run's Label arrive serially and in temporal order.
type StatusObserver interface {
	OnStatus(model.ContainerStatus)
}

// PeakSource supplies the peak memory observed by the telemetry poller for
// a runtime container name.
type PeakSource interface {
	Peak(name string) int64
}

// Runner executes one pair to completion against a dockerrt.Runtime.
type Runner struct {
	rt       dockerrt.Runtime
	registry Registry
	observer StatusObserver
	peaks    PeakSource
	shutdown *shutdown.Signal
}

// New constructs a Runner. peaks may be nil, in which case peak memory is
// always reported as 0.
func New(rt dockerrt.Runtime, registry Registry, observer StatusObserver, peaks PeakSource, sig *shutdown.Signal) *Runner {
	return &Runner{rt: rt, registry: registry, observer: observer, peaks: peaks, shutdown: sig}
}

// Run executes skill (optionally paired with scenario) under cfg and
// returns its terminal result. It never returns an error for expected
// container-lifecycle outcomes (timeout, OOM, nonzero exit, interrupted);
// those are reported via RunResult.Error. A non-nil error here means
// create/start/wait itself failed unexpectedly.
func (r *Runner) Run(ctx context.Context, skill discovery.SkillConfig, scenario *discovery.ScenarioConfig, cfg model.ContainerConfig) (model.RunResult, error) {
	label := resultLabel(skill, scenario)

	spec := buildSpec(skill, scenario, cfg)
	name := containerName(skill, scenario)

	start := time.Now()

	id, err := r.rt.ContainerCreate(ctx, spec, name)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("containerrunner: create %s: %w", label, err)
	}
	defer r.cleanup(ctx, name, id)

	r.emit(label, model.StateStarting, name, 0)
	r.registry.Register(name, id)

	if r.shutdown != nil && r.shutdown.Triggered() {
		r.emit(label, model.StateInterrupted, name, time.Since(start).Seconds())
		return model.RunResult{Label: label, ExitCode: -1, Error: model.ErrInterrupted}, nil
	}

	if err := r.rt.ContainerStart(ctx, id); err != nil {
		return model.RunResult{}, fmt.Errorf("containerrunner: start %s: %w", label, err)
	}
	r.emit(label, model.StateRunning, name, time.Since(start).Seconds())

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	wait, err := r.rt.ContainerWait(ctx, id, timeout)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("containerrunner: wait %s: %w", label, err)
	}

	if wait.TimedOut {
		_ = r.rt.ContainerStop(ctx, id, 5*time.Second)
		r.emit(label, model.StateTimeout, name, time.Since(start).Seconds())
		return model.RunResult{
			Label:       label,
			ExitCode:    -1,
			Error:       model.ErrTimeout,
			DurationSec: time.Since(start).Seconds(),
			PeakMemory:  r.peak(name),
		}, nil
	}

	inspect, err := r.rt.ContainerInspect(ctx, id)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("containerrunner: inspect %s: %w", label, err)
	}
	stdout, stderr, err := r.rt.ContainerLogs(ctx, id)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("containerrunner: logs %s: %w", label, err)
	}

	elapsed := time.Since(start).Seconds()
	errTag := classify(wait.ExitCode, inspect.OOMKilled)

	state := model.StateCompleted
	switch {
	case errTag == model.ErrOOMKilled:
		state = model.StateOOM
	case errTag != "":
		state = model.StateFailed
	}
	r.emit(label, state, name, elapsed)

	return model.RunResult{
		Label:       label,
		ExitCode:    wait.ExitCode,
		Stdout:      stdout,
		Stderr:      stderr,
		DurationSec: elapsed,
		Error:       errTag,
		PeakMemory:  r.peak(name),
	}, nil
}

func (r *Runner) cleanup(ctx context.Context, name, id string) {
	r.registry.Unregister(name)
	_ = r.rt.ContainerRemove(ctx, id)
}

// emit reports a status event. HumanMemory is left blank here: the
// telemetry poller owns that string and the orchestrator merges it in
// before forwarding to the host's observer.
func (r *Runner) emit(label string, state model.ContainerStatusState, name string, elapsed float64) {
	if r.observer == nil {
		return
	}
	r.observer.OnStatus(model.ContainerStatus{
		Label:         label,
		State:         state,
		ElapsedSecs:   elapsed,
		ContainerName: name,
	})
}

func (r *Runner) peak(name string) int64 {
	if r.peaks == nil {
		return 0
	}
	return r.peaks.Peak(name)
}

// classify maps an exit code and the runtime's authoritative OOMKilled flag
// to an error tag. Exit 137 alone is not sufficient evidence of OOM.
func classify(exitCode int, oomKilled bool) string {
	if exitCode == 0 {
		return ""
	}
	if oomKilled {
		return model.ErrOOMKilled
	}
	return model.NonzeroExit(exitCode)
}

// resultLabel is skill.dirname/scenario.name when scenario is present, else
// the skill's (possibly overridden) display name. The directory name, not
// the display name, is used for the skill portion so labels stay stable
// when names are overridden.
func resultLabel(skill discovery.SkillConfig, scenario *discovery.ScenarioConfig) string {
	dirName := skill.Path
	if idx := strings.LastIndex(dirName, "/"); idx >= 0 {
		dirName = dirName[idx+1:]
	}
	if scenario == nil {
		return skill.Name
	}
	return dirName + "/" + scenario.Name
}

func containerName(skill discovery.SkillConfig, scenario *discovery.ScenarioConfig) string {
	suffix := uuid.NewString()[:8]
	if scenario == nil {
		return fmt.Sprintf("skill-eval-%s-%s", skill.Name, suffix)
	}
	return fmt.Sprintf("skill-eval-%s-%s-%s", skill.Name, scenario.Name, suffix)
}

func buildSpec(skill discovery.SkillConfig, scenario *discovery.ScenarioConfig, cfg model.ContainerConfig) dockerrt.ContainerSpec {
	volumes := []dockerrt.VolumeBinding{
		{HostPath: skill.Path, ContainerPath: skillsMount + "/" + skill.Name, ReadOnly: true},
	}
	for hostPath, binding := range cfg.ExtraVolumes {
		volumes = append(volumes, dockerrt.VolumeBinding{
			HostPath:      hostPath,
			ContainerPath: binding.ContainerPath,
			ReadOnly:      binding.Mode != "rw",
		})
	}

	spec := dockerrt.ContainerSpec{
		Image:       cfg.Image,
		Env:         cfg.Env,
		WorkingDir:  workspaceDir,
		MemoryBytes: cfg.MemoryLimitByte,
		Volumes:     volumes,
	}

	if scenario != nil {
		spec.Volumes = append(spec.Volumes, dockerrt.VolumeBinding{
			HostPath:      scenario.Path,
			ContainerPath: scenarioMount,
			ReadOnly:      true,
		})
		spec.Entrypoint = []string{"bash", "-c"}
		parts := append([]string{"exec", "claude"}, cfg.ExtraFlags...)
		parts = append(parts, "--print", shellQuote(cfg.Prompt))
		cmd := fmt.Sprintf("bash %s/setup.sh && %s", scenarioMount, strings.Join(parts, " "))
		spec.Command = []string{cmd}
	} else {
		spec.Command = append(append([]string{}, cfg.ExtraFlags...), "--print", cfg.Prompt)
	}

	return spec
}

// shellQuote wraps s in single quotes, escaping any embedded single quote
// the POSIX-shell way: close, escaped quote, reopen.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
