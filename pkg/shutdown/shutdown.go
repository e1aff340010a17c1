// Package shutdown provides a one-shot, idempotent cooperative cancellation
// signal observed at well-defined checkpoints by the orchestrator and its
// workers.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Signal is a single edge-triggered shutdown flag. Construct one with New;
// the zero value has a nil channel and panics on Trigger. Triggering twice
// is safe; only the first call closes the channel.
type Signal struct {
	once   sync.Once
	stopCh chan struct{}
}

// New returns an armed Signal.
func New() *Signal {
	return &Signal{stopCh: make(chan struct{})}
}

// Trigger sets the signal. Idempotent: subsequent calls are no-ops.
func (s *Signal) Trigger() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}

// Triggered reports whether the signal has been set, without blocking.
func (s *Signal) Triggered() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// Done returns a channel that closes exactly once, when Trigger is called.
func (s *Signal) Done() <-chan struct{} {
	return s.stopCh
}

// WatchSignals triggers s on SIGINT or SIGTERM and returns a stop function
// that releases the underlying os/signal registration. A second delivered
// signal is harmless: Trigger is idempotent and the orchestrator proceeds
// to return partial results regardless.
func WatchSignals(s *Signal) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
			s.Trigger()
		case <-done:
		}
	}()

	return func() {
		close(done)
		signal.Stop(sigCh)
	}
}
