package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire field names of the JSONL protocol.
const (
	FieldTimestamp = "ts"
	FieldStage     = "stage"
	FieldType      = "type"
	FieldMessage   = "msg"
	FieldProgress  = "progress"
	FieldData      = "data"
)

// PayloadFatal is the payload key that promotes an error event to a stage failure.
const PayloadFatal = "fatal"

// Event is one structured record emitted by a subtitle tool. Events are
// immutable: accessors return copies and there are no setters.
type Event struct {
	timestamp   time.Time
	stage       Stage
	kind        Kind
	message     string
	progress    int
	hasProgress bool
	payload     map[string]any
}

// Option customises an Event during construction.
type Option func(*Event)

// At sets the event timestamp. Zero values fall back to construction time.
func At(ts time.Time) Option {
	return func(e *Event) {
		e.timestamp = ts
	}
}

// WithProgress attaches a completion percentage.
func WithProgress(percent int) Option {
	return func(e *Event) {
		e.progress = percent
		e.hasProgress = true
	}
}

// WithPayload attaches a structured payload. The map is copied.
func WithPayload(payload map[string]any) Option {
	return func(e *Event) {
		if payload == nil {
			e.payload = nil
			return
		}
		e.payload = cloneMap(payload)
	}
}

// New constructs an event.
func New(stage Stage, kind Kind, message string, opts ...Option) Event {
	e := Event{stage: stage, kind: kind, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(&e)
		}
	}
	if e.timestamp.IsZero() {
		e.timestamp = time.Now()
	}
	e.timestamp = e.timestamp.UTC()
	return e
}

func (e Event) Timestamp() time.Time { return e.timestamp }

func (e Event) Stage() Stage { return e.stage }

func (e Event) Kind() Kind { return e.kind }

func (e Event) Message() string { return e.message }

// Progress returns the completion percentage and whether one was present.
func (e Event) Progress() (int, bool) { return e.progress, e.hasProgress }

// HasPayload reports whether the event carried a data object.
func (e Event) HasPayload() bool { return e.payload != nil }

// Payload returns a deep copy of the data object, or nil.
func (e Event) Payload() map[string]any {
	if e.payload == nil {
		return nil
	}
	return cloneMap(e.payload)
}

// PayloadValue returns a copy of one payload entry.
func (e Event) PayloadValue(key string) (any, bool) {
	value, ok := e.payload[key]
	if !ok {
		return nil, false
	}
	return cloneValue(value), true
}

// Fatal reports whether an error event asked for the stage to be failed.
func (e Event) Fatal() bool {
	if e.kind != KindError {
		return false
	}
	flag, ok := e.payload[PayloadFatal].(bool)
	return ok && flag
}

// Equal reports whether two events carry the same content.
func (e Event) Equal(other Event) bool {
	if !e.timestamp.Equal(other.timestamp) || e.stage != other.stage || e.kind != other.kind || e.message != other.message {
		return false
	}
	if e.hasProgress != other.hasProgress || (e.hasProgress && e.progress != other.progress) {
		return false
	}
	if (e.payload == nil) != (other.payload == nil) {
		return false
	}
	left, err := json.Marshal(e.payload)
	if err != nil {
		return false
	}
	right, err := json.Marshal(other.payload)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}

func (e Event) String() string {
	if e.hasProgress {
		return fmt.Sprintf("%s/%s %d%% %s", e.stage, e.kind, e.progress, e.message)
	}
	return fmt.Sprintf("%s/%s %s", e.stage, e.kind, e.message)
}

type wireEvent struct {
	Timestamp string         `json:"ts"`
	Stage     string         `json:"stage"`
	Type      string         `json:"type"`
	Message   string         `json:"msg"`
	Progress  *int           `json:"progress,omitempty"`
	Data      map[string]any `json:"data,omitzero"`
}

// MarshalJSON encodes the event in the wire format.
func (e Event) MarshalJSON() ([]byte, error) {
	wire := wireEvent{
		Timestamp: e.timestamp.UTC().Format(time.RFC3339Nano),
		Stage:     string(e.stage),
		Type:      string(e.kind),
		Message:   e.message,
		Data:      e.payload,
	}
	if e.hasProgress {
		progress := e.progress
		wire.Progress = &progress
	}
	return json.Marshal(wire)
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = cloneValue(value)
	}
	return dst
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}
