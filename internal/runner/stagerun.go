package runner

import (
	"context"
	"sync"
	"time"

	"subtoolkit/internal/aggregator"
	"subtoolkit/internal/events"
)

// StageRun owns the subprocess of one stage together with the aggregator
// that folds its events. Observer notifications are forwarded after the
// aggregator has seen them.
type StageRun struct {
	stage      events.Stage
	supervisor *Supervisor
	agg        *aggregator.Aggregator
	forward    Handler

	mu     sync.Mutex
	result events.ProcessResult
	final  bool
}

// NewStageRun prepares a run for cmd. forward may be nil.
func NewStageRun(cmd Command, forward Handler, opts ...Option) *StageRun {
	r := &StageRun{
		stage:   cmd.Stage,
		agg:     aggregator.New(cmd.Stage),
		forward: forward,
	}
	r.supervisor = New(cmd, r, opts...)
	return r
}

// Stage returns the stage this run executes.
func (r *StageRun) Stage() events.Stage { return r.stage }

// Start launches the process.
func (r *StageRun) Start(ctx context.Context) error { return r.supervisor.Start(ctx) }

// Cancel forwards to the supervisor.
func (r *StageRun) Cancel(grace time.Duration) { r.supervisor.Cancel(grace) }

// State returns the supervisor state.
func (r *StageRun) State() State { return r.supervisor.State() }

// Done is closed once the result is final.
func (r *StageRun) Done() <-chan struct{} { return r.supervisor.Done() }

// Snapshot returns the live progress view.
func (r *StageRun) Snapshot() aggregator.Snapshot { return r.agg.Snapshot() }

// Result returns the final result once available.
func (r *StageRun) Result() (events.ProcessResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.final
}

// Wait blocks until the result is final or ctx is done.
func (r *StageRun) Wait(ctx context.Context) (events.ProcessResult, error) {
	select {
	case <-r.Done():
		result, _ := r.Result()
		return result, nil
	case <-ctx.Done():
		return events.ProcessResult{}, ctx.Err()
	}
}

func (r *StageRun) HandleEvent(e events.Event) {
	r.agg.Observe(e)
	if r.forward != nil {
		r.forward.HandleEvent(e)
	}
}

func (r *StageRun) HandleParseError(pe *events.ParseError) {
	r.agg.ObserveParseError(pe)
	if r.forward != nil {
		r.forward.HandleParseError(pe)
	}
}

func (r *StageRun) HandleExit(exit events.Exit) {
	result := r.agg.Finalize(exit)
	r.mu.Lock()
	r.result = result
	r.final = true
	r.mu.Unlock()
	if r.forward != nil {
		r.forward.HandleExit(exit)
	}
}
