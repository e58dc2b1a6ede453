package runner

import (
	"errors"
	"fmt"

	"subtoolkit/internal/events"
)

var (
	// ErrExecutableNotFound marks a launch that failed because the program
	// could not be located.
	ErrExecutableNotFound = errors.New("executable not found")
	// ErrStartFailed marks a launch where the program exists but could not be spawned.
	ErrStartFailed = errors.New("process start failed")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("process already started")
)

// LaunchKind distinguishes launch failures.
type LaunchKind string

const (
	LaunchNotFound    LaunchKind = "not_found"
	LaunchStartFailed LaunchKind = "start_failed"
)

// LaunchError reports a stage whose process never ran.
type LaunchError struct {
	Kind  LaunchKind
	Stage events.Stage
	Path  string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s (%s): %s: %v", e.Stage, e.Path, e.marker(), e.Err)
}

func (e *LaunchError) Unwrap() []error {
	return []error{e.marker(), e.Err}
}

func (e *LaunchError) marker() error {
	if e.Kind == LaunchNotFound {
		return ErrExecutableNotFound
	}
	return ErrStartFailed
}
