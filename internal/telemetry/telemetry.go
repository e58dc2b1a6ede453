package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"subtoolkit/internal/config"
)

// ServiceName identifies exported spans and metrics.
const ServiceName = "subtoolkit"

// ShutdownFunc flushes pending telemetry and releases the export target.
type ShutdownFunc func(context.Context) error

// Setup installs global tracer and meter providers when cfg is enabled. The
// returned ShutdownFunc is never nil and must run before the process exits so
// buffered spans and the final metric collection are written.
func Setup(ctx context.Context, cfg config.Telemetry, stderr io.Writer) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	out, closeOut, err := openOutput(cfg.Output, stderr)
	if err != nil {
		return nil, err
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		_ = closeOut()
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = closeOut()
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		// Spans end before the final metric collection so both reach the output.
		err := errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
		)
		if cerr := closeOut(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close telemetry output: %w", cerr))
		}
		return err
	}, nil
}

func openOutput(output string, stderr io.Writer) (io.Writer, func() error, error) {
	if output == "" || output == config.TelemetryStderr {
		if stderr == nil {
			stderr = os.Stderr
		}
		return stderr, func() error { return nil }, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open telemetry output: %w", err)
	}
	return f, f.Close, nil
}
