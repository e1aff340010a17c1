package orchestrator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jihwankim/skill-evaluator/pkg/discovery"
	"github.com/jihwankim/skill-evaluator/pkg/dockerrt"
	"github.com/jihwankim/skill-evaluator/pkg/dockerrt/dockerrttest"
	"github.com/jihwankim/skill-evaluator/pkg/model"
	"github.com/jihwankim/skill-evaluator/pkg/shutdown"
	"github.com/jihwankim/skill-evaluator/pkg/telemetry"
)

type collectingResultObserver struct {
	results []model.RunResult
}

func (c *collectingResultObserver) OnResult(r model.RunResult) { c.results = append(c.results, r) }

type collectingStatusObserver struct {
	statuses []model.ContainerStatus
}

func (c *collectingStatusObserver) OnStatus(s model.ContainerStatus) {
	c.statuses = append(c.statuses, s)
}

func TestRunBatchExpandsSkillsCrossScenarios(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	rt.Script("img", &dockerrttest.FakeContainer{WaitResult: dockerrt.WaitResult{ExitCode: 0}})

	caches := telemetry.NewCaches()
	resultObs := &collectingResultObserver{}
	statusObs := &collectingStatusObserver{}
	o := New(rt, caches, statusObs, resultObs, zerolog.Nop())

	skills := []discovery.SkillConfig{{Path: "/s1", Name: "s1"}, {Path: "/s2", Name: "s2"}}
	scenarios := []discovery.ScenarioConfig{{Path: "/sc1", Name: "sc1"}}
	cfg := model.ContainerConfig{Image: "img", MemoryLimitByte: 1 << 30, TimeoutSeconds: 30, Prompt: "go"}

	results := o.RunBatch(context.Background(), skills, scenarios, cfg, 2, shutdown.New())

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if len(resultObs.results) != 2 {
		t.Errorf("expected 2 observed results, got %d", len(resultObs.results))
	}
}

func TestRunBatchNoScenariosOnePairPerSkill(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	rt.Script("img", &dockerrttest.FakeContainer{WaitResult: dockerrt.WaitResult{ExitCode: 0}})

	o := New(rt, telemetry.NewCaches(), nil, nil, zerolog.Nop())
	skills := []discovery.SkillConfig{{Path: "/s1", Name: "s1"}, {Path: "/s2", Name: "s2"}}
	cfg := model.ContainerConfig{Image: "img", MemoryLimitByte: 1 << 30, TimeoutSeconds: 30, Prompt: "go"}

	results := o.RunBatch(context.Background(), skills, nil, cfg, 2, shutdown.New())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestRunBatchInterruptedSignalShortCircuitsPending(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	rt.Script("img", &dockerrttest.FakeContainer{WaitResult: dockerrt.WaitResult{ExitCode: 0}})

	o := New(rt, telemetry.NewCaches(), nil, nil, zerolog.Nop())
	skills := []discovery.SkillConfig{{Path: "/s1", Name: "s1"}}
	cfg := model.ContainerConfig{Image: "img", MemoryLimitByte: 1 << 30, TimeoutSeconds: 30, Prompt: "go"}

	sig := shutdown.New()
	sig.Trigger()
	results := o.RunBatch(context.Background(), skills, nil, cfg, 2, sig)

	if len(results) != 1 || results[0].Error != model.ErrInterrupted {
		t.Fatalf("expected single interrupted result, got %+v", results)
	}
}

func TestExpandPairsSkillMajorScenarioMinor(t *testing.T) {
	skills := []discovery.SkillConfig{{Name: "a"}, {Name: "b"}}
	scenarios := []discovery.ScenarioConfig{{Name: "x"}, {Name: "y"}}
	pairs := expandPairs(skills, scenarios)
	if len(pairs) != 4 {
		t.Fatalf("expected 4 pairs, got %d", len(pairs))
	}
	want := [][2]string{{"a", "x"}, {"a", "y"}, {"b", "x"}, {"b", "y"}}
	for i, p := range pairs {
		if p.skill.Name != want[i][0] || p.scenario.Name != want[i][1] {
			t.Errorf("pair %d = %s/%s, want %s/%s", i, p.skill.Name, p.scenario.Name, want[i][0], want[i][1])
		}
	}
}
