// Package logging assembles structured slog loggers and formatting helpers used
// across subtoolkit.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code tags log lines
// with run IDs and stage names. When a log directory is configured every
// record is also appended to a JSON log file. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
