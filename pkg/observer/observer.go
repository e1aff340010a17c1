// Package observer defines the thin adapter surface that lets a host attach
// live display, result exporters, and progress tracking to a batch without
// the orchestrator knowing anything about presentation.
package observer

import "github.com/jihwankim/skill-evaluator/pkg/model"

// StatusObserver receives every ContainerStatus event emitted during a
// batch. Implementations may be called from arbitrary worker goroutines;
// calls for a single run label arrive serially and in temporal order.
type StatusObserver interface {
	OnStatus(model.ContainerStatus)
}

// ResultObserver receives each RunResult exactly once, after that run's
// terminal status has been emitted.
type ResultObserver interface {
	OnResult(model.RunResult)
}

// NullStatusObserver discards every status event.
type NullStatusObserver struct{}

func (NullStatusObserver) OnStatus(model.ContainerStatus) {}

// NullResultObserver discards every result.
type NullResultObserver struct{}

func (NullResultObserver) OnResult(model.RunResult) {}

// ChanStatusObserver forwards every status event onto a channel. Callers
// must drain it; a full channel blocks the emitting worker.
type ChanStatusObserver chan model.ContainerStatus

func (c ChanStatusObserver) OnStatus(s model.ContainerStatus) { c <- s }

// ChanResultObserver forwards every result onto a channel.
type ChanResultObserver chan model.RunResult

func (c ChanResultObserver) OnResult(r model.RunResult) { c <- r }
