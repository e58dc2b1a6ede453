package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"subtoolkit/internal/aggregator"
	"subtoolkit/internal/events"
)

func stageAttr(span sdktrace.ReadOnlySpan) string {
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key("pipeline.stage") {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestPipelineSpansCarryStageStatus(t *testing.T) {
	requireUnix(t)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	plan := Plan{
		Input: "/media/show",
		Stages: []StageConfig{
			succeed(events.StageExtract),
			stage(events.StageTranslate, `echo 'quota exceeded' >&2; exit 2`),
			succeed(events.StageSync),
		},
	}
	summary, _ := runPlan(t, plan, WithTracerProvider(provider))
	require.Equal(t, PhaseAborted, summary.Phase)

	stages := map[string]sdktrace.ReadOnlySpan{}
	var run sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "pipeline.stage":
			stages[stageAttr(span)] = span
		case "pipeline.run":
			run = span
		}
	}

	require.Len(t, stages, 2, "sync never started")
	assert.Equal(t, codes.Ok, stages["extract"].Status().Code)
	assert.Equal(t, codes.Error, stages["translate"].Status().Code)
	assert.Equal(t, "process exited before reporting a result", stages["translate"].Status().Description)
	require.NotNil(t, run)
	assert.Equal(t, codes.Error, run.Status().Code)
	assert.Equal(t, string(AbortStageFailed), run.Status().Description)
	assert.Equal(t, run.SpanContext().SpanID(), stages["extract"].Parent().SpanID())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCleanExitWithoutResultIsLoggedAsAnomaly(t *testing.T) {
	requireUnix(t)
	var out syncBuffer
	logger := slog.New(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	plan := Plan{
		Input:  "/media/show",
		Stages: []StageConfig{stage(events.StageExtract, emit(events.StageExtract, events.KindInfo, "nothing to do", ""))},
	}
	summary, _ := runPlan(t, plan, WithLogger(logger), WithTracerProvider(provider))
	require.True(t, summary.Completed())
	require.Equal(t, []string{aggregator.NoteNoResult}, summary.Results[0].Notes)

	var warning string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, `"event_type":"stage_complete_anomaly"`) {
			warning = line
		}
	}
	require.NotEmpty(t, warning, "no anomaly record in:\n%s", out.String())
	assert.Contains(t, warning, `"level":"WARN"`)
	assert.Contains(t, warning, aggregator.NoteNoResult)
	assert.Contains(t, warning, `"stage":"extract"`)
	assert.NotContains(t, out.String(), `"event_type":"stage_complete"`)

	var noted bool
	for _, span := range recorder.Ended() {
		for _, ev := range span.Events() {
			noted = noted || ev.Name == "stage.notes"
		}
	}
	assert.True(t, noted, "stage span should record the notes")
}
