// Package events defines the data model shared by the orchestration core:
// the typed events that subtitle tools emit as JSONL, the parse failures
// produced when a line cannot be understood, the exit report of a stage
// subprocess, and the immutable result a finished stage is summarised into.
//
// Values in this package carry no behaviour beyond construction and
// inspection. Framing and validation live in the jsonl package, lifecycle in
// runner, and sequencing in pipeline.
package events
