// Package aggregator folds the event stream of one stage into a live
// progress snapshot and, once the process exits, a final ProcessResult.
package aggregator

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"subtoolkit/internal/events"
)

// MaxDiagnostics bounds how many parse errors are retained per stage.
const MaxDiagnostics = 32

// Messages used when no richer explanation is available.
const (
	MessageNoResult  = "process exited before reporting a result"
	MessageCancelled = "cancelled by user"
	NoteNoResult     = "process exited cleanly without reporting a result"
	NoteTerminated   = "process was terminated after reporting a result"
)

// Snapshot is a point-in-time view of a running stage.
type Snapshot struct {
	Stage       events.Stage
	Progress    int
	HasProgress bool
	LastMessage string
	Warnings    int
	Errors      int
	ParseErrors int
	Events      int
	HasResult   bool
}

// Aggregator accumulates events for a single stage. Observe and
// ObserveParseError are meant to be called from one delivery goroutine;
// Snapshot may be called concurrently.
type Aggregator struct {
	mu sync.Mutex

	stage       events.Stage
	progress    int
	hasProgress bool
	lastMessage string
	warnings    []string
	errors      []string
	fatal       []string
	summary     map[string]any
	hasResult   bool
	diagnostics []events.ParseError
	parseErrors int
	eventCount  int

	finalized bool
	result    events.ProcessResult
}

// New returns an empty aggregator for stage.
func New(stage events.Stage) *Aggregator {
	return &Aggregator{stage: stage}
}

// Observe folds one event into the running state.
func (a *Aggregator) Observe(e events.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return
	}

	a.eventCount++
	if msg := strings.TrimSpace(e.Message()); msg != "" {
		a.lastMessage = msg
	}
	if percent, ok := e.Progress(); ok {
		a.progress = percent
		a.hasProgress = true
	}

	switch e.Kind() {
	case events.KindWarning:
		a.warnings = append(a.warnings, e.Message())
	case events.KindError:
		a.errors = append(a.errors, e.Message())
		if e.Fatal() {
			a.fatal = append(a.fatal, e.Message())
		}
	case events.KindResult:
		a.summary = e.Payload()
		if a.summary == nil {
			a.summary = map[string]any{}
		}
		a.hasResult = true
	}
}

// ObserveParseError records an unparseable line. Progress is untouched.
func (a *Aggregator) ObserveParseError(pe *events.ParseError) {
	if pe == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return
	}
	a.parseErrors++
	if len(a.diagnostics) == MaxDiagnostics {
		a.diagnostics = slices.Delete(a.diagnostics, 0, 1)
	}
	a.diagnostics = append(a.diagnostics, *pe)
}

// Snapshot returns the current progress view.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Stage:       a.stage,
		Progress:    a.progress,
		HasProgress: a.hasProgress,
		LastMessage: a.lastMessage,
		Warnings:    len(a.warnings),
		Errors:      len(a.errors),
		ParseErrors: a.parseErrors,
		Events:      a.eventCount,
		HasResult:   a.hasResult,
	}
}

// Finalize produces the stage result. Later calls return the same result and
// later observations are ignored.
func (a *Aggregator) Finalize(exit events.Exit) events.ProcessResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return a.result
	}
	a.finalized = true

	r := events.ProcessResult{
		Stage:           a.stage,
		ExitCode:        exit.Code,
		Signal:          exit.Signal,
		Duration:        exit.Duration,
		HasResult:       a.hasResult,
		Progress:        a.progress,
		Warnings:        slices.Clone(a.warnings),
		Errors:          slices.Clone(a.errors),
		Diagnostics:     slices.Clone(a.diagnostics),
		ParseErrorCount: a.parseErrors,
		EventCount:      a.eventCount,
		Stderr:          exit.Stderr,
	}
	if a.hasResult {
		r.Summary = maps.Clone(a.summary)
		digest(&r, a.summary)
	} else {
		r.Summary = map[string]any{}
	}

	switch {
	case exit.LaunchErr != nil:
		r.Status = events.StatusLaunchFailed
		r.ErrorMessage = exit.LaunchErr.Error()
	case exit.CancelRequested:
		r.Status = events.StatusCancelled
		r.ErrorMessage = MessageCancelled
	case len(a.fatal) > 0:
		r.Status = events.StatusFailed
		r.ErrorMessage = strings.Join(a.fatal, "; ")
	case a.hasResult && exit.Terminated():
		r.Status = events.StatusSucceeded
		r.Notes = append(r.Notes, NoteTerminated)
	case exit.Clean():
		r.Status = events.StatusSucceeded
		if !a.hasResult {
			r.Notes = append(r.Notes, NoteNoResult)
		}
	default:
		r.Status = events.StatusFailed
		r.ErrorMessage = failureMessage(exit, a.hasResult, a.errors)
	}

	a.result = r
	return r
}

func failureMessage(exit events.Exit, hasResult bool, errs []string) string {
	if !hasResult {
		return MessageNoResult
	}
	if len(errs) > 0 {
		return strings.Join(errs, "; ")
	}
	if exit.Signal != "" {
		return fmt.Sprintf("process killed by %s", exit.Signal)
	}
	return fmt.Sprintf("process exited with code %d", exit.Code)
}

func digest(r *events.ProcessResult, summary map[string]any) {
	r.FilesProcessed, _ = intValue(summary[events.PayloadFilesProcessed])
	r.FilesSucceeded, _ = intValue(summary[events.PayloadFilesSuccessful])
	r.FilesFailed, _ = intValue(summary[events.PayloadFilesFailed])

	outputs, ok := summary[events.PayloadOutputs]
	if !ok {
		outputs = summary[events.PayloadOutputFiles]
	}
	if list, ok := outputs.([]any); ok {
		for _, item := range list {
			if path, ok := item.(string); ok && path != "" {
				r.Outputs = append(r.Outputs, path)
			}
		}
	}
}

func intValue(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
