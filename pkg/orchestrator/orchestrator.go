// Package orchestrator expands (skills x scenarios) into a work queue,
// dispatches it onto a bounded worker pool, and propagates status and
// results to observers while honoring cooperative shutdown.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jihwankim/skill-evaluator/pkg/containerrunner"
	"github.com/jihwankim/skill-evaluator/pkg/discovery"
	"github.com/jihwankim/skill-evaluator/pkg/dockerrt"
	"github.com/jihwankim/skill-evaluator/pkg/memory"
	"github.com/jihwankim/skill-evaluator/pkg/model"
	"github.com/jihwankim/skill-evaluator/pkg/observer"
	"github.com/jihwankim/skill-evaluator/pkg/shutdown"
	"github.com/jihwankim/skill-evaluator/pkg/telemetry"
)

// pair is one unit of work: a skill, optionally paired with a scenario.
type pair struct {
	skill    discovery.SkillConfig
	scenario *discovery.ScenarioConfig
}

// Orchestrator owns the four pieces of shared mutable state a batch
// touches: the statuses map, the peak-memory cache, the active-containers
// registry, and the forwarding observer.
type Orchestrator struct {
	rt     dockerrt.Runtime
	caches *telemetry.Caches
	logger zerolog.Logger

	mu       sync.Mutex
	statuses map[string]model.ContainerStatus // keyed by runtime container name
	active   map[string]string                // name -> id

	statusObserver observer.StatusObserver
	resultObserver observer.ResultObserver
}

// New constructs an Orchestrator. statusObserver/resultObserver may be nil.
func New(rt dockerrt.Runtime, caches *telemetry.Caches, statusObserver observer.StatusObserver, resultObserver observer.ResultObserver, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		rt:             rt,
		caches:         caches,
		logger:         logger,
		statuses:       make(map[string]model.ContainerStatus),
		active:         make(map[string]string),
		statusObserver: statusObserver,
		resultObserver: resultObserver,
	}
}

// Register implements containerrunner.Registry.
func (o *Orchestrator) Register(name, id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[name] = id
}

// Unregister implements containerrunner.Registry.
func (o *Orchestrator) Unregister(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, name)
}

// ActiveContainers implements telemetry.StatusSource.
func (o *Orchestrator) ActiveContainers() []telemetry.ActiveContainer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]telemetry.ActiveContainer, 0, len(o.active))
	for name, id := range o.active {
		status, ok := o.statuses[name]
		if ok && status.State != model.StateStarting && status.State != model.StateRunning {
			continue
		}
		out = append(out, telemetry.ActiveContainer{Name: name, ID: id})
	}
	return out
}

// OnStatus implements containerrunner.StatusObserver: it records the event
// in the statuses map, enriches it with the telemetry human-memory string,
// and forwards it to the host's observer.
func (o *Orchestrator) OnStatus(s model.ContainerStatus) {
	if o.caches != nil {
		if human, ok := o.caches.Human(s.ContainerName); ok {
			s.HumanMemory = human
		}
	}

	o.mu.Lock()
	o.statuses[s.ContainerName] = s
	o.mu.Unlock()

	if o.statusObserver != nil {
		o.statusObserver.OnStatus(s)
	}
}

// Peak implements containerrunner.PeakSource by delegating to the shared
// telemetry cache.
func (o *Orchestrator) Peak(name string) int64 {
	if o.caches == nil {
		return 0
	}
	return o.caches.Peak(name)
}

// killActive asks the runtime to terminate every currently active
// container, best-effort, after a shutdown signal fires.
func (o *Orchestrator) killActive(ctx context.Context) {
	o.mu.Lock()
	ids := make([]string, 0, len(o.active))
	for _, id := range o.active {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		_ = o.rt.ContainerKill(ctx, id, "SIGKILL")
		_ = o.rt.ContainerStop(ctx, id, 2*time.Second)
	}
}

// RunBatch expands skills x scenarios, dispatches onto a bounded worker
// pool, and returns every accumulated RunResult. It never returns an error
// on interrupt; partial results are always returned.
func (o *Orchestrator) RunBatch(ctx context.Context, skills []discovery.SkillConfig, scenarios []discovery.ScenarioConfig, cfg model.ContainerConfig, maxWorkers int, sig *shutdown.Signal) []model.RunResult {
	pairs := expandPairs(skills, scenarios)
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	pollerCtx, cancelPoller := context.WithCancel(ctx)
	defer cancelPoller()
	poller := telemetry.NewPoller(o.rt, o, o.caches, telemetry.PollInterval, o.logger)
	go poller.Run(pollerCtx, sig.Done())

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-sig.Done():
			o.killActive(ctx)
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	runner := containerrunner.New(o.rt, o, o, o, sig)

	sem := semaphore.NewWeighted(int64(maxWorkers))
	var wg sync.WaitGroup
	var resultsMu sync.Mutex
	results := make([]model.RunResult, 0, len(pairs))

	for _, p := range pairs {
		p := p

		if sig.Triggered() {
			label := interruptedLabel(p)
			result := model.RunResult{Label: label, ExitCode: -1, Error: model.ErrInterrupted}
			resultsMu.Lock()
			results = append(results, result)
			resultsMu.Unlock()
			if o.statusObserver != nil {
				o.statusObserver.OnStatus(model.ContainerStatus{Label: label, State: model.StateInterrupted})
			}
			if o.resultObserver != nil {
				o.resultObserver.OnResult(result)
			}
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			result, err := runner.Run(ctx, p.skill, p.scenario, cfg)
			if err != nil {
				o.logger.Error().Err(err).Str("skill", p.skill.Name).Msg("container runner failed unexpectedly")
				result = model.RunResult{Label: interruptedLabel(p), ExitCode: -1, Error: "error:" + err.Error()}
				if o.statusObserver != nil {
					o.statusObserver.OnStatus(model.ContainerStatus{Label: result.Label, State: model.StateFailed})
				}
			}

			resultsMu.Lock()
			results = append(results, result)
			resultsMu.Unlock()

			if o.resultObserver != nil {
				o.resultObserver.OnResult(result)
			}
		}()
	}

	wg.Wait()
	return results
}

func expandPairs(skills []discovery.SkillConfig, scenarios []discovery.ScenarioConfig) []pair {
	pairs := make([]pair, 0, len(skills)*max(1, len(scenarios)))
	if len(scenarios) == 0 {
		for _, s := range skills {
			pairs = append(pairs, pair{skill: s})
		}
		return pairs
	}
	for _, s := range skills {
		for i := range scenarios {
			sc := scenarios[i]
			pairs = append(pairs, pair{skill: s, scenario: &sc})
		}
	}
	return pairs
}

func interruptedLabel(p pair) string {
	if p.scenario == nil {
		return p.skill.Name
	}
	return p.skill.Name + "/" + p.scenario.Name
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// PlanWorkers exposes the capacity planner so the CLI layer can pick a
// default worker count from host memory when no explicit cap is given.
func PlanWorkers(totalMem, perContainer int64) int {
	return memory.PlanWorkers(totalMem, perContainer)
}

// NewRunID generates a collision-safe identifier for a batch or report.
func NewRunID() string {
	return uuid.NewString()
}
