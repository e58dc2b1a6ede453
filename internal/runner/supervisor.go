package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"subtoolkit/internal/events"
	"subtoolkit/internal/jsonl"
	"subtoolkit/internal/logging"
)

const (
	// DefaultGracePeriod is how long a cancelled process may take to exit
	// before it is killed.
	DefaultGracePeriod = 5 * time.Second
	// pipeDrainTimeout bounds the wait for output pipes held open by
	// orphaned grandchildren after the child exits.
	pipeDrainTimeout = 2 * time.Second
)

// Command describes one stage invocation.
type Command struct {
	Stage events.Stage
	Path  string
	Args  []string
	// Env is appended to the current process environment.
	Env []string
	Dir string
}

// String renders the command line without environment.
func (c Command) String() string {
	parts := append([]string{c.Path}, c.Args...)
	return strings.Join(parts, " ")
}

// Handler receives everything a supervised process produces. Calls are made
// from a single goroutine in arrival order. HandleExit is called exactly
// once per Start, after the last event.
type Handler interface {
	HandleEvent(events.Event)
	HandleParseError(*events.ParseError)
	HandleExit(events.Exit)
}

// State is the lifecycle position of a Supervisor.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCancelling
	StateExited
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxLineBytes caps a single stdout line.
func WithMaxLineBytes(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxLineBytes = n
		}
	}
}

// WithStderrTailBytes bounds the stderr text attached to the exit report.
func WithStderrTailBytes(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.stderrTailBytes = n
		}
	}
}

// WithGracePeriod sets the grace used when the start context is cancelled.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithStrictParsing validates stdout with the strict event schema.
func WithStrictParsing(strict bool) Option {
	return func(s *Supervisor) {
		s.strict = strict
	}
}

// Supervisor runs one command and streams its stdout through the JSONL
// buffer and parser to a Handler.
type Supervisor struct {
	cmd     Command
	handler Handler
	logger  *slog.Logger

	maxLineBytes    int
	stderrTailBytes int
	grace           time.Duration
	strict          bool
	meterProvider   metric.MeterProvider
	metrics         *instruments

	buffer *jsonl.Buffer
	parser *jsonl.Parser
	stderr *tailWriter

	mu              sync.Mutex
	state           State
	process         *os.Process
	cancelRequested bool
	killTimer       *time.Timer
	started         time.Time
	exit            events.Exit
	done            chan struct{}
}

// New prepares a supervisor. Nothing runs until Start.
func New(cmd Command, handler Handler, opts ...Option) *Supervisor {
	s := &Supervisor{
		cmd:             cmd,
		handler:         handler,
		maxLineBytes:    jsonl.DefaultMaxLineBytes,
		stderrTailBytes: DefaultStderrTailBytes,
		grace:           DefaultGracePeriod,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logging.NewComponentLogger(s.logger, "supervisor").With(logging.String(logging.FieldStage, string(cmd.Stage)))

	s.buffer = jsonl.NewBuffer(s.maxLineBytes)
	parserOpts := []jsonl.Option{jsonl.WithMaxLineBytes(s.maxLineBytes)}
	if s.strict {
		parserOpts = append(parserOpts, jsonl.Strict())
	}
	s.parser = jsonl.NewParser(parserOpts...)
	s.stderr = newTailWriter(s.stderrTailBytes)
	s.metrics = newInstruments(s.meterProvider)
	return s
}

// Start launches the process and returns once it is running. Output is
// consumed in the background. Cancelling ctx cancels the process with the
// configured grace period. A launch failure is returned as *LaunchError and
// is also reported through HandleExit.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	path, err := exec.LookPath(s.cmd.Path)
	if err != nil {
		s.mu.Unlock()
		return s.launchFailed(LaunchNotFound, err)
	}

	c := exec.Command(path, s.cmd.Args...)
	c.Env = append(os.Environ(), s.cmd.Env...)
	c.Dir = s.cmd.Dir
	c.Stdout = stdoutSink{s}
	c.Stderr = s.stderr
	c.WaitDelay = pipeDrainTimeout
	configureProcess(c)

	if err := c.Start(); err != nil {
		s.mu.Unlock()
		return s.launchFailed(LaunchStartFailed, err)
	}
	s.process = c.Process
	s.started = time.Now()
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("process started",
		logging.String(logging.FieldEventType, "process_start"),
		logging.Int("pid", c.Process.Pid),
		logging.String("command", s.cmd.String()),
	)

	stop := context.AfterFunc(ctx, func() {
		s.logger.Info("context cancelled; stopping process", logging.String(logging.FieldEventType, "process_cancel"))
		s.Cancel(s.grace)
	})
	go s.wait(c, stop)
	return nil
}

func (s *Supervisor) launchFailed(kind LaunchKind, cause error) error {
	launchErr := &LaunchError{Kind: kind, Stage: s.cmd.Stage, Path: s.cmd.Path, Err: cause}
	logging.ErrorWithContext(s.logger, "process launch failed", "process_launch_failed",
		logging.String("command", s.cmd.Path),
		logging.String("launch_kind", string(kind)),
		logging.String(logging.FieldErrorHint, "check the interpreter and script paths with 'subtoolkit doctor'"),
		logging.Error(cause),
	)
	s.mu.Lock()
	s.state = StateExited
	s.mu.Unlock()
	s.finish(events.Exit{Stage: s.cmd.Stage, Code: -1, LaunchErr: launchErr})
	return launchErr
}

// Cancel asks the process to stop: a terminate signal first, then a kill
// once grace has elapsed. It never blocks and only the first call has any
// effect. Cancelling an exited or unstarted process does nothing.
func (s *Supervisor) Cancel(grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	s.state = StateCancelling
	s.cancelRequested = true

	if grace <= 0 {
		if err := kill(s.process); err != nil {
			s.logger.Debug("kill failed", logging.Error(err))
		}
		return
	}
	if err := terminate(s.process); err != nil {
		s.logger.Debug("terminate failed", logging.Error(err))
	}
	s.killTimer = time.AfterFunc(grace, s.forceKill)
}

func (s *Supervisor) forceKill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCancelling {
		return
	}
	logging.WarnWithContext(s.logger, "process ignored terminate; killing", "process_kill",
		logging.String(logging.FieldImpact, "stage output may be incomplete"),
	)
	if err := kill(s.process); err != nil {
		s.logger.Debug("kill failed", logging.Error(err))
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed after HandleExit has returned.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Exit returns the exit report once the process has ended.
func (s *Supervisor) Exit() (events.Exit, bool) {
	select {
	case <-s.done:
		return s.exit, true
	default:
		return events.Exit{}, false
	}
}

// Wait blocks until the process has ended or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) (events.Exit, error) {
	select {
	case <-s.done:
		return s.exit, nil
	case <-ctx.Done():
		return events.Exit{}, ctx.Err()
	}
}

// Stats returns the parser counters. Only stable after Done.
func (s *Supervisor) Stats() jsonl.Stats { return s.parser.Stats() }

func (s *Supervisor) wait(c *exec.Cmd, stop func() bool) {
	waitErr := c.Wait()
	stop()

	s.mu.Lock()
	if s.killTimer != nil {
		s.killTimer.Stop()
	}
	s.state = StateExited
	cancelRequested := s.cancelRequested
	started := s.started
	s.mu.Unlock()

	if line, ok := s.buffer.Flush(); ok {
		s.deliver(line)
	}

	exit := events.Exit{
		Stage:           s.cmd.Stage,
		Code:            -1,
		StartedAt:       started,
		Duration:        since(started),
		Stderr:          s.stderr.String(),
		StderrTruncated: s.stderr.Truncated(),
		CancelRequested: cancelRequested,
	}
	if c.ProcessState != nil {
		exit.Code = c.ProcessState.ExitCode()
		exit.Signal = exitSignal(c.ProcessState)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		logging.WarnWithContext(s.logger, "process wait reported an error", "process_wait_error",
			logging.Error(waitErr),
			logging.String(logging.FieldImpact, "trailing output may have been lost"),
		)
	}

	s.logger.Info("process exited",
		logging.String(logging.FieldEventType, "process_exit"),
		logging.Int("exit_code", exit.Code),
		logging.String("signal", exit.Signal),
		logging.Bool("cancel_requested", exit.CancelRequested),
		logging.Duration("duration", exit.Duration),
		logging.Int("parse_errors", s.parser.Stats().ParseErrors),
	)
	s.finish(exit)
}

func (s *Supervisor) finish(exit events.Exit) {
	s.exit = exit
	s.metrics.recordExit(exit)
	if s.handler != nil {
		s.handler.HandleExit(exit)
	}
	close(s.done)
}

func (s *Supervisor) deliver(line jsonl.Line) {
	out, ok := s.parser.Parse(line)
	if !ok {
		return
	}
	if out.Failed() {
		s.metrics.recordParseError(s.cmd.Stage, out.ParseError.Oversized)
		s.logger.Debug("unparseable output",
			logging.String("reason", out.ParseError.Reason),
			logging.Bool("oversized", out.ParseError.Oversized),
		)
		if s.handler != nil {
			s.handler.HandleParseError(out.ParseError)
		}
		return
	}
	s.metrics.recordEvent(s.cmd.Stage, out.Event.Kind())
	if s.handler != nil {
		s.handler.HandleEvent(out.Event)
	}
}

// stdoutSink receives stdout chunks from the exec copy goroutine.
type stdoutSink struct{ s *Supervisor }

func (w stdoutSink) Write(p []byte) (int, error) {
	for _, line := range w.s.buffer.Feed(p) {
		w.s.deliver(line)
	}
	return len(p), nil
}
