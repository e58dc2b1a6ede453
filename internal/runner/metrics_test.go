package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"subtoolkit/internal/events"
)

// counterTotals sums every int64 counter by name, keeping only data points
// tagged with stage.
func counterTotals(t *testing.T, reader *sdkmetric.ManualReader, stage events.Stage) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("stage"); ok && v.AsString() == string(stage) {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	return totals
}

func TestSupervisorRecordsMetrics(t *testing.T) {
	requireUnix(t)
	script := `echo '{"stage":"translate","type":"info","msg":"one"}'
echo 'not json'
i=0; while [ $i -lt 20 ]; do printf 'xxxxxxxxxx'; i=$((i+1)); done
printf '\n'
echo '{"stage":"translate","type":"result","msg":"done","data":{}}'`

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	s := New(shell(events.StageTranslate, script), newRecorder(),
		WithMaxLineBytes(64),
		WithMeterProvider(provider),
	)
	require.NoError(t, s.Start(context.Background()))
	waitDone(t, s.Done())

	totals := counterTotals(t, reader, events.StageTranslate)
	assert.Equal(t, int64(2), totals[MetricEvents])
	assert.Equal(t, int64(2), totals[MetricParseErrors])
	assert.Equal(t, int64(1), totals[MetricOversizedLines])
	assert.Equal(t, int64(1), totals[MetricProcessExits])
}

func TestLaunchFailureRecordsExit(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cmd := Command{Stage: events.StageSync, Path: "/nonexistent/subtoolkit-sync"}
	s := New(cmd, newRecorder(), WithMeterProvider(provider))
	require.Error(t, s.Start(context.Background()))

	totals := counterTotals(t, reader, events.StageSync)
	assert.Equal(t, int64(1), totals[MetricProcessExits])
	assert.Zero(t, totals[MetricEvents])
}
