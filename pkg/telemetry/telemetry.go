// Package telemetry polls running containers for memory usage without
// blocking the dispatcher, updating shared caches the container runner and
// observers read from.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jihwankim/skill-evaluator/pkg/dockerrt"
	"github.com/jihwankim/skill-evaluator/pkg/memory"
)

// PollInterval is how often the poller takes a stats snapshot of each
// currently-running container.
const PollInterval = 2 * time.Second

// ActiveContainer identifies one currently starting/running container.
type ActiveContainer struct {
	Name string // runtime container name, used as the cache key
	ID   string // runtime container ID, used to request stats
}

// StatusSource reports the containers currently in the starting or running
// state. The orchestrator's statuses map implements this.
type StatusSource interface {
	ActiveContainers() []ActiveContainer
}

// Caches holds the shared, mutex-guarded memory telemetry state. Construct
// one with NewCaches; the zero value has nil maps and panics on update.
type Caches struct {
	mu    sync.Mutex
	human map[string]string
	peak  map[string]int64
}

// NewCaches returns an empty Caches.
func NewCaches() *Caches {
	return &Caches{
		human: make(map[string]string),
		peak:  make(map[string]int64),
	}
}

// Human returns the advisory "usage / limit" string for name, if any.
func (c *Caches) Human(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.human[name]
	return v, ok
}

// Peak returns the observed peak usage in bytes for name, 0 if none.
func (c *Caches) Peak(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak[name]
}

func (c *Caches) update(name string, usage, limit int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > 0 {
		c.human[name] = memory.Format(usage) + " / " + memory.Format(limit)
	}
	if usage > c.peak[name] {
		c.peak[name] = usage
	}
}

// Poller is the background telemetry loop. It never blocks a container
// runner and never terminates a run on a telemetry error.
type Poller struct {
	rt       dockerrt.Runtime
	source   StatusSource
	caches   *Caches
	interval time.Duration
	logger   zerolog.Logger

	handles map[string]string // name -> id, evicted when the run leaves the running set
}

// NewPoller constructs a Poller. interval defaults to PollInterval if zero.
func NewPoller(rt dockerrt.Runtime, source StatusSource, caches *Caches, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = PollInterval
	}
	return &Poller{
		rt:       rt,
		source:   source,
		caches:   caches,
		interval: interval,
		logger:   logger,
		handles:  make(map[string]string),
	}
}

// Run polls until stop closes or ctx is cancelled. It is meant to run on its
// own goroutine for the lifetime of a batch.
func (p *Poller) Run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	active := p.source.ActiveContainers()
	seen := make(map[string]struct{}, len(active))

	for _, ac := range active {
		seen[ac.Name] = struct{}{}
		p.handles[ac.Name] = ac.ID

		snap, err := p.rt.ContainerStats(ctx, ac.ID)
		if err != nil {
			p.logger.Debug().Err(err).Str("container", ac.Name).Msg("telemetry: stats snapshot failed")
			continue
		}
		p.caches.update(ac.Name, snap.UsageBytes, snap.LimitBytes)
	}

	for name := range p.handles {
		if _, ok := seen[name]; !ok {
			delete(p.handles, name)
		}
	}
}
