package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jihwankim/skill-evaluator/pkg/dockerrt"
	"github.com/jihwankim/skill-evaluator/pkg/dockerrt/dockerrttest"
)

type fixedSource struct {
	active []ActiveContainer
}

func (f *fixedSource) ActiveContainers() []ActiveContainer { return f.active }

func TestPollOnceUpdatesCaches(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	rt.Script("img", &dockerrttest.FakeContainer{
		Stats: dockerrt.StatsSnapshot{UsageBytes: 100 * 1 << 20, LimitBytes: 1 << 30},
	})
	id, err := rt.ContainerCreate(context.Background(), dockerrt.ContainerSpec{Image: "img"}, "run-1")
	if err != nil {
		t.Fatal(err)
	}

	source := &fixedSource{active: []ActiveContainer{{Name: "run-1", ID: id}}}
	caches := NewCaches()
	p := NewPoller(rt, source, caches, time.Millisecond, zerolog.Nop())

	p.pollOnce(context.Background())

	if peak := caches.Peak("run-1"); peak != 100*1<<20 {
		t.Errorf("Peak = %d, want %d", peak, 100*1<<20)
	}
	human, ok := caches.Human("run-1")
	if !ok || human == "" {
		t.Errorf("expected human string, got %q ok=%v", human, ok)
	}
}

func TestPollOnceKeepsPeakMax(t *testing.T) {
	caches := NewCaches()
	caches.update("run-1", 50, 1000)
	caches.update("run-1", 30, 1000)
	if peak := caches.Peak("run-1"); peak != 50 {
		t.Errorf("Peak = %d, want 50", peak)
	}
}

func TestPollOnceEvictsHandleWhenRunLeaves(t *testing.T) {
	rt := dockerrttest.NewRuntime()
	id, err := rt.ContainerCreate(context.Background(), dockerrt.ContainerSpec{Image: "img"}, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	source := &fixedSource{active: []ActiveContainer{{Name: "run-1", ID: id}}}
	caches := NewCaches()
	p := NewPoller(rt, source, caches, time.Millisecond, zerolog.Nop())

	p.pollOnce(context.Background())
	if _, ok := p.handles["run-1"]; !ok {
		t.Fatal("expected handle cached")
	}

	source.active = nil
	p.pollOnce(context.Background())
	if _, ok := p.handles["run-1"]; ok {
		t.Error("expected handle evicted once run leaves running set")
	}
}
