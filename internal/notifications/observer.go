package notifications

import (
	"context"
	"log/slog"
	"time"

	"subtoolkit/internal/events"
	"subtoolkit/internal/logging"
	"subtoolkit/internal/pipeline"
)

// Observer returns a pipeline observer that pushes the terminal outcome of a
// run on input. Delivery failures are logged and never affect the run.
func Observer(svc Service, input string, logger *slog.Logger) pipeline.Observer {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	started := time.Now()
	report := func(err error) {
		if err != nil {
			logging.WarnWithContext(logger, "notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			)
		}
	}
	return pipeline.Hooks{
		PipelineCompleted: func(results []events.ProcessResult) {
			report(svc.NotifyPipelineCompleted(context.Background(), input, results, time.Since(started)))
		},
		PipelineAborted: func(reason pipeline.AbortReason, results []events.ProcessResult) {
			report(svc.NotifyPipelineAborted(context.Background(), input, string(reason), results))
		},
	}
}
