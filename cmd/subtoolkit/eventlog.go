package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"subtoolkit/internal/events"
	"subtoolkit/internal/logging"
	"subtoolkit/internal/pipeline"
)

// eventLogPattern matches event logs for retention pruning.
const eventLogPattern = "events-*.jsonl"

// eventLog appends every pipeline event to a JSONL file in wire format, so
// a recorded run can be checked later with the validate command.
type eventLog struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	logger *slog.Logger
	failed bool
}

func openEventLog(dir string, now time.Time, logger *slog.Logger) (*eventLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	name := "events-" + now.UTC().Format("20060102-150405.000") + ".jsonl"
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &eventLog{path: path, file: file, enc: json.NewEncoder(file), logger: logger}, nil
}

func (l *eventLog) Path() string { return l.path }

func (l *eventLog) observer() pipeline.Observer {
	return pipeline.Hooks{Event: l.write}
}

func (l *eventLog) write(e events.Event) {
	if l.failed {
		return
	}
	if err := l.enc.Encode(e); err != nil {
		l.failed = true
		logging.WarnWithContext(l.logger, "event log write failed; recording stopped", "event_log_write_failed",
			logging.String("path", l.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the event log for this run is incomplete"),
		)
	}
}

func (l *eventLog) Close() error {
	return l.file.Close()
}
