package events

import "time"

// Signal names reported in Exit.Signal.
const (
	SignalTerminate = "SIGTERM"
	SignalKill      = "SIGKILL"
)

// Exit reports how a stage subprocess ended.
type Exit struct {
	Stage     Stage
	Code      int
	Signal    string
	StartedAt time.Time
	Duration  time.Duration
	// Stderr holds the tail of the standard error stream.
	Stderr          string
	StderrTruncated bool
	CancelRequested bool
	// LaunchErr is set when the process never started.
	LaunchErr error
}

// Launched reports whether the process was actually spawned.
func (x Exit) Launched() bool { return x.LaunchErr == nil }

// Clean reports a zero exit status without a signal.
func (x Exit) Clean() bool { return x.LaunchErr == nil && x.Signal == "" && x.Code == 0 }

// Terminated reports an exit caused by a graceful terminate signal.
func (x Exit) Terminated() bool {
	return x.Signal == SignalTerminate || x.Code == 128+15
}

// Status is the final disposition of a stage.
type Status string

const (
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
	StatusLaunchFailed Status = "launch_failed"
)

// Payload keys lifted into typed ProcessResult fields.
const (
	PayloadFilesProcessed  = "files_processed"
	PayloadFilesSuccessful = "files_successful"
	PayloadFilesFailed     = "files_failed"
	PayloadOutputs         = "outputs"
	PayloadOutputFiles     = "output_files"
)

// ProcessResult summarises a finished stage. It is created once, when the
// stage exits or is forcibly terminated, and must be treated as read-only.
type ProcessResult struct {
	Stage    Stage
	Status   Status
	ExitCode int
	Signal   string
	Duration time.Duration

	// Summary is the payload of the last result event.
	Summary   map[string]any
	HasResult bool
	Progress  int

	Warnings []string
	Errors   []string
	// Diagnostics keeps the most recent parse failures.
	Diagnostics     []ParseError
	ParseErrorCount int
	EventCount      int

	Stderr       string
	ErrorMessage string

	FilesProcessed int
	FilesSucceeded int
	FilesFailed    int
	Outputs        []string

	// Notes records anomalies that did not change the status.
	Notes []string
}

// Succeeded reports whether the stage allows the pipeline to continue.
func (r ProcessResult) Succeeded() bool { return r.Status == StatusSucceeded }

// SuccessRate returns the percentage of successfully processed files.
func (r ProcessResult) SuccessRate() float64 {
	if r.FilesProcessed == 0 {
		return 0
	}
	return float64(r.FilesSucceeded) / float64(r.FilesProcessed) * 100
}
