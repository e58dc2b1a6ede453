package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"subtoolkit/internal/events"
)

const meterName = "subtoolkit/internal/runner"

// Metric names recorded by supervisors.
const (
	MetricEvents          = "subtoolkit.events"
	MetricParseErrors     = "subtoolkit.parse_errors"
	MetricOversizedLines  = "subtoolkit.oversized_lines"
	MetricProcessExits    = "subtoolkit.process.exits"
	MetricProcessDuration = "subtoolkit.process.duration"
)

type instruments struct {
	events      metric.Int64Counter
	parseErrors metric.Int64Counter
	oversized   metric.Int64Counter
	exits       metric.Int64Counter
	duration    metric.Float64Histogram
}

// WithMeterProvider sets where process metrics are recorded. The global
// provider is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Supervisor) {
		if mp != nil {
			s.meterProvider = mp
		}
	}
}

func newInstruments(mp metric.MeterProvider) *instruments {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	fallback := noop.Meter{}

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}
	hist, err := meter.Float64Histogram(MetricProcessDuration,
		metric.WithDescription("Wall time of stage processes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		hist, _ = fallback.Float64Histogram(MetricProcessDuration)
	}

	return &instruments{
		events:      counter(MetricEvents, "Events parsed from stage output"),
		parseErrors: counter(MetricParseErrors, "Unparseable stage output lines"),
		oversized:   counter(MetricOversizedLines, "Stage output lines exceeding the length cap"),
		exits:       counter(MetricProcessExits, "Stage processes that ended"),
		duration:    hist,
	}
}

func (m *instruments) recordEvent(stage events.Stage, kind events.Kind) {
	m.events.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("kind", string(kind)),
	))
}

func (m *instruments) recordParseError(stage events.Stage, oversized bool) {
	attrs := metric.WithAttributes(attribute.String("stage", string(stage)))
	m.parseErrors.Add(context.Background(), 1, attrs)
	if oversized {
		m.oversized.Add(context.Background(), 1, attrs)
	}
}

func (m *instruments) recordExit(exit events.Exit) {
	outcome := "exited"
	switch {
	case exit.LaunchErr != nil:
		outcome = "launch_failed"
	case exit.CancelRequested:
		outcome = "cancelled"
	case exit.Signal != "":
		outcome = "signaled"
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", string(exit.Stage)),
		attribute.String("outcome", outcome),
	)
	m.exits.Add(context.Background(), 1, attrs)
	if exit.Duration > 0 {
		m.duration.Record(context.Background(), exit.Duration.Seconds(), attrs)
	}
}

func since(start time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
