package containerrunner

import (
	"context"
	"sync"
	"testing"

	"github.com/jihwankim/skill-evaluator/pkg/discovery"
	"github.com/jihwankim/skill-evaluator/pkg/dockerrt"
	"github.com/jihwankim/skill-evaluator/pkg/dockerrt/dockerrttest"
	"github.com/jihwankim/skill-evaluator/pkg/model"
	"github.com/jihwankim/skill-evaluator/pkg/shutdown"
)

type recordingRegistry struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingRegistry) Register(name, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *recordingRegistry) Unregister(name string) {}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []model.ContainerStatus
}

func (o *recordingObserver) OnStatus(s model.ContainerStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, s)
}

func baseConfig() model.ContainerConfig {
	return model.ContainerConfig{
		Image:           "docker-skill-evaluator:minimal",
		MemoryLimitByte: 1 << 30,
		TimeoutSeconds:  30,
		Prompt:          "review this",
	}
}

func TestRunSuccessEmitsCompleted(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	rt.Script("docker-skill-evaluator:minimal", &dockerrttest.FakeContainer{
		WaitResult: dockerrt.WaitResult{ExitCode: 0},
		Inspect:    dockerrt.InspectResult{ExitCode: 0},
		Stdout:     "ok",
	})

	registry := &recordingRegistry{}
	observer := &recordingObserver{}
	runner := New(rt, registry, observer, nil, shutdown.New())

	skill := discovery.SkillConfig{Path: "/skills/lint", Name: "lint"}
	result, err := runner.Run(context.Background(), skill, nil, baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Errorf("expected no error tag, got %q", result.Error)
	}
	if result.Label != "lint" {
		t.Errorf("label = %q, want lint", result.Label)
	}

	last := observer.statuses[len(observer.statuses)-1]
	if last.State != model.StateCompleted {
		t.Errorf("terminal state = %q, want completed", last.State)
	}
}

func TestRunTimeoutStopsAndReports(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	rt.Script("docker-skill-evaluator:minimal", &dockerrttest.FakeContainer{
		WaitResult: dockerrt.WaitResult{TimedOut: true},
	})

	runner := New(rt, &recordingRegistry{}, &recordingObserver{}, nil, shutdown.New())
	skill := discovery.SkillConfig{Path: "/skills/lint", Name: "lint"}
	result, err := runner.Run(context.Background(), skill, nil, baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != model.ErrTimeout || result.ExitCode != -1 {
		t.Errorf("got error=%q exitCode=%d, want timeout/-1", result.Error, result.ExitCode)
	}
}

func TestRunOOMKilledTakesPriorityOverExitCode(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	rt.Script("docker-skill-evaluator:minimal", &dockerrttest.FakeContainer{
		WaitResult: dockerrt.WaitResult{ExitCode: 137},
		Inspect:    dockerrt.InspectResult{ExitCode: 137, OOMKilled: true},
	})

	runner := New(rt, &recordingRegistry{}, &recordingObserver{}, nil, shutdown.New())
	skill := discovery.SkillConfig{Path: "/skills/lint", Name: "lint"}
	result, err := runner.Run(context.Background(), skill, nil, baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != model.ErrOOMKilled {
		t.Errorf("error = %q, want oom_killed", result.Error)
	}
}

func TestRunExit137WithoutOOMFlagIsNonzeroExit(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	rt.Script("docker-skill-evaluator:minimal", &dockerrttest.FakeContainer{
		WaitResult: dockerrt.WaitResult{ExitCode: 137},
		Inspect:    dockerrt.InspectResult{ExitCode: 137, OOMKilled: false},
	})

	runner := New(rt, &recordingRegistry{}, &recordingObserver{}, nil, shutdown.New())
	skill := discovery.SkillConfig{Path: "/skills/lint", Name: "lint"}
	result, err := runner.Run(context.Background(), skill, nil, baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "nonzero_exit:137" {
		t.Errorf("error = %q, want nonzero_exit:137", result.Error)
	}
}

func TestRunShortCircuitsWhenShutdownAlreadyTriggered(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	sig := shutdown.New()
	sig.Trigger()

	runner := New(rt, &recordingRegistry{}, &recordingObserver{}, nil, sig)
	skill := discovery.SkillConfig{Path: "/skills/lint", Name: "lint"}
	result, err := runner.Run(context.Background(), skill, nil, baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != model.ErrInterrupted || result.ExitCode != -1 {
		t.Errorf("got error=%q exitCode=%d, want interrupted/-1", result.Error, result.ExitCode)
	}

	fc, ok := rt.Container("fake-1")
	if !ok {
		t.Fatal("expected a container to have been created before the shutdown check")
	}
	if fc.Started {
		t.Error("container should not have been started after an already-triggered shutdown")
	}
	if !fc.Removed {
		t.Error("created-but-unstarted container should still be removed")
	}
}

func TestResultLabelUsesScenarioName(t *testing.T) {
	skill := discovery.SkillConfig{Path: "/skills/my-skill", Name: "renamed"}
	scenario := &discovery.ScenarioConfig{Path: "/scenarios/sql-injection", Name: "sql-injection"}
	if got := resultLabel(skill, scenario); got != "my-skill/sql-injection" {
		t.Errorf("resultLabel = %q, want my-skill/sql-injection", got)
	}
}
