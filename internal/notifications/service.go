package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"subtoolkit/internal/config"
	"subtoolkit/internal/events"
)

const userAgent = "subtoolkit/0.1"

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyPipelineCompleted(ctx context.Context, input string, results []events.ProcessResult, duration time.Duration) error
	NotifyPipelineAborted(ctx context.Context, input, reason string, results []events.ProcessResult) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyPipelineCompleted(ctx context.Context, input string, results []events.ProcessResult, duration time.Duration) error {
	duration = max(duration.Round(time.Second), 0)
	var files, failed int
	stages := make([]string, 0, len(results))
	for _, r := range results {
		stages = append(stages, string(r.Stage))
		files += r.FilesProcessed
		failed += r.FilesFailed
	}
	message := fmt.Sprintf("✅ %s: %s finished in %s", displayInput(input), strings.Join(stages, ", "), duration)
	if files > 0 {
		message += fmt.Sprintf("\n%d files processed, %d failed", files, failed)
	}
	tags := []string{"subtoolkit", "pipeline", "completed"}
	if failed > 0 {
		tags = append(tags, "warning")
	}
	return n.send(ctx, payload{
		title:   "Subtitles - Complete",
		message: message,
		tags:    tags,
	})
}

func (n *ntfyService) NotifyPipelineAborted(ctx context.Context, input, reason string, results []events.ProcessResult) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ %s: pipeline %s", displayInput(input), strings.ReplaceAll(reason, "_", " "))
	for _, r := range results {
		if r.Succeeded() {
			continue
		}
		fmt.Fprintf(&builder, "\n%s %s", r.Stage, r.Status)
		if msg := strings.TrimSpace(r.ErrorMessage); msg != "" {
			builder.WriteString(": ")
			builder.WriteString(msg)
		}
	}
	priority := "high"
	if reason == "cancelled" {
		priority = "default"
	}
	return n.send(ctx, payload{
		title:    "Subtitles - Failed",
		message:  builder.String(),
		tags:     []string{"subtoolkit", "pipeline", "error"},
		priority: priority,
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Subtitles - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"subtoolkit", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayInput(input string) string {
	if base := filepath.Base(input); base != "." && base != string(filepath.Separator) {
		return base
	}
	return input
}

type noopService struct{}

func (noopService) NotifyPipelineCompleted(context.Context, string, []events.ProcessResult, time.Duration) error {
	return nil
}

func (noopService) NotifyPipelineAborted(context.Context, string, string, []events.ProcessResult) error {
	return nil
}

func (noopService) TestNotification(context.Context) error { return nil }
