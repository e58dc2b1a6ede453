package pipeline

import (
	"slices"
	"time"

	"subtoolkit/internal/aggregator"
	"subtoolkit/internal/events"
)

// Phase is the coarse position of a pipeline execution.
type Phase string

const (
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseAborted   Phase = "aborted"
)

// Skip records a stage that was reported as skipped.
type Skip struct {
	Stage  events.Stage
	Reason SkipReason
}

// PipelineState is a read-only snapshot of an execution.
type PipelineState struct {
	RunID string
	Phase Phase
	// Stages lists the enabled stages in order.
	Stages []events.Stage
	// Current indexes Stages for the active stage, or -1.
	Current     int
	Results     []events.ProcessResult
	Skipped     []Skip
	AbortReason AbortReason
	// Progress is the live view of the active stage, if any.
	Progress *aggregator.Snapshot
	Started  time.Time
	Finished time.Time
}

// CurrentStage returns the active stage, if any.
func (s PipelineState) CurrentStage() (events.Stage, bool) {
	if s.Current < 0 || s.Current >= len(s.Stages) {
		return "", false
	}
	return s.Stages[s.Current], true
}

// Terminal reports whether the execution has finished.
func (s PipelineState) Terminal() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseAborted
}

// Summary is the final outcome of an execution.
type Summary struct {
	RunID       string
	Phase       Phase
	AbortReason AbortReason
	Results     []events.ProcessResult
	Skipped     []Skip
	Duration    time.Duration
}

// Completed reports whether every eligible stage succeeded.
func (s Summary) Completed() bool { return s.Phase == PhaseCompleted }

// Result returns the result for stage, if it ran.
func (s Summary) Result(stage events.Stage) (events.ProcessResult, bool) {
	idx := slices.IndexFunc(s.Results, func(r events.ProcessResult) bool { return r.Stage == stage })
	if idx < 0 {
		return events.ProcessResult{}, false
	}
	return s.Results[idx], true
}

func (s PipelineState) clone() PipelineState {
	out := s
	out.Stages = slices.Clone(s.Stages)
	out.Results = slices.Clone(s.Results)
	out.Skipped = slices.Clone(s.Skipped)
	if s.Progress != nil {
		snap := *s.Progress
		out.Progress = &snap
	}
	return out
}
