// Package pipeline sequences the extract, translate, and sync stages. Each
// stage runs only after the previous one finished successfully. The first
// failure or a cancellation stops the pipeline and reports the remaining
// stages as skipped.
package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"subtoolkit/internal/events"
	"subtoolkit/internal/logging"
	"subtoolkit/internal/runner"
)

const tracerName = "subtoolkit/internal/pipeline"

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGracePeriod sets how long a cancelled stage may take to exit.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// WithRunnerOptions passes options to every stage supervisor.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(c *Coordinator) {
		c.runnerOpts = append(c.runnerOpts, opts...)
	}
}

// WithObserver subscribes o to every execution.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observers.add(o)
		}
	}
}

// Coordinator starts pipeline executions.
type Coordinator struct {
	logger     *slog.Logger
	grace      time.Duration
	runnerOpts []runner.Option
	observers  observerSet
	tracer     trace.Tracer
}

// WithTracerProvider sets where pipeline spans are recorded. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewCoordinator constructs a coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		grace:  runner.DefaultGracePeriod,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logging.NewComponentLogger(c.logger, "pipeline")
	return c
}

// Subscribe adds an observer for executions started afterwards. The returned
// function removes it.
func (c *Coordinator) Subscribe(o Observer) func() {
	if o == nil {
		return func() {}
	}
	return c.observers.add(o)
}

// Run executes plan and blocks until it finishes.
func (c *Coordinator) Run(ctx context.Context, plan Plan) (Summary, error) {
	exec, err := c.Start(ctx, plan)
	if err != nil {
		return Summary{}, err
	}
	<-exec.Done()
	return exec.Summary(), nil
}

// Start validates plan and begins executing it in the background.
// Cancelling ctx cancels the execution.
func (c *Coordinator) Start(ctx context.Context, plan Plan) (*Execution, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	enabled := plan.Enabled()
	stages := make([]events.Stage, len(enabled))
	for i, sc := range enabled {
		stages[i] = sc.Stage
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	e := &Execution{
		coordinator: c,
		plan:        plan,
		enabled:     enabled,
		observers:   c.observers.snapshot(),
		logger:      logging.WithContext(ctx, c.logger),
		done:        make(chan struct{}),
		state: PipelineState{
			RunID:   runID,
			Phase:   PhaseRunning,
			Stages:  stages,
			Current: -1,
			Started: time.Now(),
		},
	}
	stop := context.AfterFunc(ctx, e.Cancel)
	go func() {
		defer stop()
		e.run(ctx)
	}()
	return e, nil
}

// Execution is one running pipeline.
type Execution struct {
	coordinator *Coordinator
	plan        Plan
	enabled     []StageConfig
	observers   []Observer
	logger      *slog.Logger

	mu        sync.Mutex
	state     PipelineState
	active    *runner.StageRun
	cancelled bool
	done      chan struct{}
}

// ID returns the run identifier.
func (e *Execution) ID() string { return e.state.RunID }

// Done is closed after the terminal notification has been delivered.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Wait blocks until the execution finishes or ctx is done.
func (e *Execution) Wait(ctx context.Context) (Summary, error) {
	select {
	case <-e.done:
		return e.Summary(), nil
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

// State returns a snapshot of the execution.
func (e *Execution) State() PipelineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.state.clone()
	if e.active != nil {
		snap := e.active.Snapshot()
		state.Progress = &snap
	}
	return state
}

// Summary returns the outcome. It is complete once Done is closed.
func (e *Execution) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	end := e.state.Finished
	if end.IsZero() {
		end = time.Now()
	}
	return Summary{
		RunID:       e.state.RunID,
		Phase:       e.state.Phase,
		AbortReason: e.state.AbortReason,
		Results:     slices.Clone(e.state.Results),
		Skipped:     slices.Clone(e.state.Skipped),
		Duration:    end.Sub(e.state.Started),
	}
}

// Cancel stops the active stage and prevents later stages from starting.
// It does not block and repeated calls have no further effect.
func (e *Execution) Cancel() {
	e.mu.Lock()
	if e.cancelled || e.state.Terminal() {
		e.mu.Unlock()
		return
	}
	e.cancelled = true
	active := e.active
	e.mu.Unlock()

	e.logger.Info("pipeline cancellation requested", logging.String(logging.FieldEventType, "pipeline_cancel"))
	if active != nil {
		active.Cancel(e.coordinator.grace)
	}
}

func (e *Execution) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

func (e *Execution) run(ctx context.Context) {
	ctx, span := e.coordinator.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("pipeline.run_id", e.state.RunID),
			attribute.String("pipeline.input", e.plan.Input),
			attribute.Bool("pipeline.single_file", e.plan.SingleFile),
			attribute.Int("pipeline.stages", len(e.enabled)),
		),
	)

	e.logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("input", e.plan.Input),
		logging.Bool("single_file", e.plan.SingleFile),
		logging.Int("stages", len(e.enabled)),
	)

	for i, sc := range e.enabled {
		if e.isCancelled() {
			e.skipFrom(i, SkipCancelled)
			e.abort(span, AbortCancelled)
			return
		}
		if sc.Stage == events.StageSync && e.plan.SingleFile {
			e.skip(sc.Stage, SkipSingleFile)
			continue
		}

		result := e.runStage(ctx, i, sc)
		if result.Succeeded() {
			continue
		}

		reason, skipReason := AbortStageFailed, SkipPriorFailure
		switch result.Status {
		case events.StatusCancelled:
			reason, skipReason = AbortCancelled, SkipCancelled
		case events.StatusLaunchFailed:
			reason = AbortLaunchFailed
		}
		e.skipFrom(i+1, skipReason)
		e.abort(span, reason)
		return
	}
	e.complete(span)
}

func (e *Execution) runStage(ctx context.Context, index int, sc StageConfig) events.ProcessResult {
	cmd := withJSONL(sc.Stage, sc.Command)
	stageCtx := logging.WithStage(ctx, string(sc.Stage))
	stageCtx, span := e.coordinator.tracer.Start(stageCtx, "pipeline.stage",
		trace.WithAttributes(
			attribute.String("pipeline.run_id", e.state.RunID),
			attribute.String("pipeline.stage", string(sc.Stage)),
		),
	)
	defer span.End()
	logger := logging.WithContext(stageCtx, e.coordinator.logger)

	fwd := &forwarder{exec: e, stage: sc.Stage}
	opts := append([]runner.Option{runner.WithLogger(logger), runner.WithGracePeriod(e.coordinator.grace)}, e.coordinator.runnerOpts...)
	run := runner.NewStageRun(cmd, fwd, opts...)
	fwd.run = run

	e.mu.Lock()
	e.state.Current = index
	e.active = run
	e.mu.Unlock()

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("command", cmd.String()),
	)
	e.notify(func(o Observer) { o.OnStageStarted(sc.Stage, cmd) })

	if err := run.Start(stageCtx); err == nil && e.isCancelled() {
		run.Cancel(e.coordinator.grace)
	}
	<-run.Done()
	result, _ := run.Result()

	e.mu.Lock()
	e.state.Results = append(e.state.Results, result)
	e.state.Current = -1
	e.active = nil
	e.mu.Unlock()

	span.SetAttributes(
		attribute.String("pipeline.stage_status", string(result.Status)),
		attribute.Int("pipeline.exit_code", result.ExitCode),
	)
	switch {
	case result.Succeeded() && len(result.Notes) > 0:
		span.SetStatus(codes.Ok, "")
		span.AddEvent("stage.notes", trace.WithAttributes(attribute.StringSlice("notes", result.Notes)))
		logging.WarnWithContext(logger, "stage completed with anomalies", "stage_complete_anomaly",
			logging.String("notes", strings.Join(result.Notes, "; ")),
			logging.Int("exit_code", result.ExitCode),
			logging.Duration("duration", result.Duration),
			logging.String(logging.FieldErrorHint, "check the stage script's output contract"),
			logging.String(logging.FieldImpact, "stage counted as succeeded; its outputs may be incomplete"),
		)
	case result.Succeeded():
		span.SetStatus(codes.Ok, "")
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Int("exit_code", result.ExitCode),
			logging.Duration("duration", result.Duration),
			logging.Int("warnings", len(result.Warnings)),
			logging.Int("parse_errors", result.ParseErrorCount),
		)
	default:
		span.SetStatus(codes.Error, result.ErrorMessage)
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("status", string(result.Status)),
			logging.Int("exit_code", result.ExitCode),
			logging.String("error_message", result.ErrorMessage),
		)
	}
	e.notify(func(o Observer) { o.OnStageFinished(result) })
	return result
}

func (e *Execution) skipFrom(index int, reason SkipReason) {
	for _, sc := range e.enabled[index:] {
		e.skip(sc.Stage, reason)
	}
}

func (e *Execution) skip(stage events.Stage, reason SkipReason) {
	e.mu.Lock()
	e.state.Skipped = append(e.state.Skipped, Skip{Stage: stage, Reason: reason})
	e.mu.Unlock()
	e.logger.Info("stage skipped",
		logging.String(logging.FieldEventType, "stage_skip"),
		logging.String(logging.FieldStage, string(stage)),
		logging.String("reason", string(reason)),
	)
	e.notify(func(o Observer) { o.OnStageSkipped(stage, reason) })
}

// complete and abort end the run span before Done is closed, so waiters
// observe a finished trace.
func (e *Execution) complete(span trace.Span) {
	results := e.finish(PhaseCompleted, "")
	span.SetStatus(codes.Ok, "")
	span.End()
	e.logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Int("stages_run", len(results)),
	)
	e.notify(func(o Observer) { o.OnPipelineCompleted(slices.Clone(results)) })
	close(e.done)
}

func (e *Execution) abort(span trace.Span, reason AbortReason) {
	results := e.finish(PhaseAborted, reason)
	span.SetStatus(codes.Error, string(reason))
	span.End()
	logging.WarnWithContext(e.logger, "pipeline aborted", "pipeline_abort",
		logging.String("reason", string(reason)),
		logging.Int("stages_run", len(results)),
		logging.String(logging.FieldImpact, "remaining stages were not run"),
	)
	e.notify(func(o Observer) { o.OnPipelineAborted(reason, slices.Clone(results)) })
	close(e.done)
}

func (e *Execution) finish(phase Phase, reason AbortReason) []events.ProcessResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Phase = phase
	e.state.AbortReason = reason
	e.state.Current = -1
	e.state.Finished = time.Now()
	return slices.Clone(e.state.Results)
}

func (e *Execution) notify(fn func(Observer)) {
	for _, o := range e.observers {
		fn(o)
	}
}

// forwarder relays one stage's stream to the execution observers.
type forwarder struct {
	exec  *Execution
	stage events.Stage
	run   *runner.StageRun
}

func (f *forwarder) HandleEvent(ev events.Event) {
	f.exec.notify(func(o Observer) { o.OnEvent(ev) })
	if _, ok := ev.Progress(); ok && f.run != nil {
		snap := f.run.Snapshot()
		f.exec.notify(func(o Observer) { o.OnStageProgress(snap) })
	}
}

func (f *forwarder) HandleParseError(pe *events.ParseError) {
	f.exec.notify(func(o Observer) { o.OnParseError(f.stage, pe) })
}

func (f *forwarder) HandleExit(events.Exit) {}
