// Package telemetry installs the OpenTelemetry SDK providers used by pipeline
// runs.
//
// Setup builds a tracer provider and a meter provider that export JSON through
// the stdout exporters, either to standard error or to a file named in the
// [telemetry] config section, and registers both as the otel globals. The
// pipeline coordinator and process supervisor record into whatever providers
// are global, so a disabled Setup leaves them on the no-op defaults.
package telemetry
