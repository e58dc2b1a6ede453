package events

import (
	"fmt"
	"time"
)

// ParseError describes a non-blank output line that could not be turned into
// an Event.
type ParseError struct {
	Raw        string
	Reason     string
	Oversized  bool
	ReceivedAt time.Time
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable output: %s", e.Reason)
}

// Outcome is the result of parsing one line: exactly one of Event or
// ParseError is meaningful.
type Outcome struct {
	Event      Event
	ParseError *ParseError
}

// EventOutcome wraps a parsed event.
func EventOutcome(event Event) Outcome {
	return Outcome{Event: event}
}

// FailedOutcome wraps a parse failure.
func FailedOutcome(pe *ParseError) Outcome {
	return Outcome{ParseError: pe}
}

// Failed reports whether the outcome is a parse failure.
func (o Outcome) Failed() bool { return o.ParseError != nil }
