// Package dockerrttest provides an in-memory dockerrt.Runtime double for
// tests that exercise container lifecycle logic without a Docker daemon.
package dockerrttest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jihwankim/skill-evaluator/pkg/dockerrt"
)

// FakeContainer is the scripted behavior for one created container.
type FakeContainer struct {
	Spec dockerrt.ContainerSpec

	WaitResult dockerrt.WaitResult
	WaitErr    error
	Stats      dockerrt.StatsSnapshot
	Inspect    dockerrt.InspectResult
	Stdout     string
	Stderr     string

	Started bool
	Stopped bool
	Killed  bool
	Removed bool
}

// Runtime is a scripted dockerrt.Runtime. Construct one with NewRuntime (its
// zero value has nil maps and panics on Script or ContainerCreate); call
// Script to preconfigure a container's outcome before it is created, or let
// ContainerCreate assign default zero-value behavior.
type Runtime struct {
	mu         sync.Mutex
	containers map[string]*FakeContainer
	scripted   map[string]*FakeContainer // keyed by image, consumed on create
	nextID     int
	HostMem    int64
	CreateErr  error
}

// NewRuntime returns an empty fake runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		containers: make(map[string]*FakeContainer),
		scripted:   make(map[string]*FakeContainer),
	}
}

// Script registers the behavior the next ContainerCreate for this image
// should produce.
func (r *Runtime) Script(image string, fc *FakeContainer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripted[image] = fc
}

// Container returns the fake state recorded for id, if any.
func (r *Runtime) Container(id string) (*FakeContainer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fc, ok := r.containers[id]
	return fc, ok
}

func (r *Runtime) ContainerCreate(ctx context.Context, spec dockerrt.ContainerSpec, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return "", r.CreateErr
	}
	r.nextID++
	id := fmt.Sprintf("fake-%d", r.nextID)
	fc, ok := r.scripted[spec.Image]
	if ok {
		delete(r.scripted, spec.Image)
	} else {
		fc = &FakeContainer{}
	}
	fc.Spec = spec
	r.containers[id] = fc
	return id, nil
}

func (r *Runtime) ContainerStart(ctx context.Context, id string) error {
	fc, ok := r.Container(id)
	if !ok {
		return fmt.Errorf("fake runtime: unknown container %s", id)
	}
	fc.Started = true
	return nil
}

func (r *Runtime) ContainerStop(ctx context.Context, id string, timeout time.Duration) error {
	fc, ok := r.Container(id)
	if !ok {
		return fmt.Errorf("fake runtime: unknown container %s", id)
	}
	fc.Stopped = true
	return nil
}

func (r *Runtime) ContainerKill(ctx context.Context, id string, signal string) error {
	fc, ok := r.Container(id)
	if !ok {
		return fmt.Errorf("fake runtime: unknown container %s", id)
	}
	fc.Killed = true
	return nil
}

func (r *Runtime) ContainerWait(ctx context.Context, id string, timeout time.Duration) (dockerrt.WaitResult, error) {
	fc, ok := r.Container(id)
	if !ok {
		return dockerrt.WaitResult{}, fmt.Errorf("fake runtime: unknown container %s", id)
	}
	return fc.WaitResult, fc.WaitErr
}

func (r *Runtime) ContainerLogs(ctx context.Context, id string) (string, string, error) {
	fc, ok := r.Container(id)
	if !ok {
		return "", "", fmt.Errorf("fake runtime: unknown container %s", id)
	}
	return fc.Stdout, fc.Stderr, nil
}

func (r *Runtime) ContainerStats(ctx context.Context, id string) (dockerrt.StatsSnapshot, error) {
	fc, ok := r.Container(id)
	if !ok {
		return dockerrt.StatsSnapshot{}, fmt.Errorf("fake runtime: unknown container %s", id)
	}
	return fc.Stats, nil
}

func (r *Runtime) ContainerInspect(ctx context.Context, id string) (dockerrt.InspectResult, error) {
	fc, ok := r.Container(id)
	if !ok {
		return dockerrt.InspectResult{}, fmt.Errorf("fake runtime: unknown container %s", id)
	}
	return fc.Inspect, nil
}

func (r *Runtime) ContainerRemove(ctx context.Context, id string) error {
	fc, ok := r.Container(id)
	if !ok {
		return fmt.Errorf("fake runtime: unknown container %s", id)
	}
	fc.Removed = true
	return nil
}

func (r *Runtime) HostMemTotal(ctx context.Context) (int64, error) {
	return r.HostMem, nil
}
