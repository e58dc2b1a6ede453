// Package notifications pushes pipeline outcomes to ntfy.
//
// The service posts to the topic URL from the [notifications] config section
// and degrades to a no-op when no topic is set. Observer adapts a Service to
// the pipeline observer interface so the CLI can subscribe it to a run.
package notifications
