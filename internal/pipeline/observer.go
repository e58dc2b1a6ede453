package pipeline

import (
	"sync"

	"subtoolkit/internal/aggregator"
	"subtoolkit/internal/events"
	"subtoolkit/internal/runner"
)

// SkipReason explains why an enabled stage did not run.
type SkipReason string

const (
	SkipSingleFile   SkipReason = "single_file"
	SkipPriorFailure SkipReason = "prior_failure"
	SkipCancelled    SkipReason = "cancelled"
)

// AbortReason explains why a pipeline stopped early.
type AbortReason string

const (
	AbortStageFailed  AbortReason = "stage_failed"
	AbortLaunchFailed AbortReason = "launch_failed"
	AbortCancelled    AbortReason = "cancelled"
)

// Observer receives pipeline notifications. Calls for one execution are
// never concurrent and arrive in order: every event of a stage precedes its
// StageFinished.
type Observer interface {
	OnStageStarted(stage events.Stage, cmd runner.Command)
	OnEvent(e events.Event)
	OnParseError(stage events.Stage, pe *events.ParseError)
	OnStageProgress(snapshot aggregator.Snapshot)
	OnStageFinished(result events.ProcessResult)
	OnStageSkipped(stage events.Stage, reason SkipReason)
	OnPipelineCompleted(results []events.ProcessResult)
	OnPipelineAborted(reason AbortReason, results []events.ProcessResult)
}

// Hooks adapts plain functions to Observer. Nil fields are ignored.
type Hooks struct {
	StageStarted      func(events.Stage, runner.Command)
	Event             func(events.Event)
	ParseError        func(events.Stage, *events.ParseError)
	StageProgress     func(aggregator.Snapshot)
	StageFinished     func(events.ProcessResult)
	StageSkipped      func(events.Stage, SkipReason)
	PipelineCompleted func([]events.ProcessResult)
	PipelineAborted   func(AbortReason, []events.ProcessResult)
}

func (h Hooks) OnStageStarted(stage events.Stage, cmd runner.Command) {
	if h.StageStarted != nil {
		h.StageStarted(stage, cmd)
	}
}

func (h Hooks) OnEvent(e events.Event) {
	if h.Event != nil {
		h.Event(e)
	}
}

func (h Hooks) OnParseError(stage events.Stage, pe *events.ParseError) {
	if h.ParseError != nil {
		h.ParseError(stage, pe)
	}
}

func (h Hooks) OnStageProgress(snapshot aggregator.Snapshot) {
	if h.StageProgress != nil {
		h.StageProgress(snapshot)
	}
}

func (h Hooks) OnStageFinished(result events.ProcessResult) {
	if h.StageFinished != nil {
		h.StageFinished(result)
	}
}

func (h Hooks) OnStageSkipped(stage events.Stage, reason SkipReason) {
	if h.StageSkipped != nil {
		h.StageSkipped(stage, reason)
	}
}

func (h Hooks) OnPipelineCompleted(results []events.ProcessResult) {
	if h.PipelineCompleted != nil {
		h.PipelineCompleted(results)
	}
}

func (h Hooks) OnPipelineAborted(reason AbortReason, results []events.ProcessResult) {
	if h.PipelineAborted != nil {
		h.PipelineAborted(reason, results)
	}
}

// observerSet fans notifications out to subscribers.
type observerSet struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]Observer
	order  []int
}

func (s *observerSet) add(o Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byID == nil {
		s.byID = map[int]Observer{}
	}
	id := s.nextID
	s.nextID++
	s.byID[id] = o
	s.order = append(s.order, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byID, id)
	}
}

func (s *observerSet) snapshot() []Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Observer, 0, len(s.byID))
	for _, id := range s.order {
		if o, ok := s.byID[id]; ok {
			out = append(out, o)
		}
	}
	return out
}
