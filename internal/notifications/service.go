package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"emgpipe/internal/config"
)

const userAgent = "emgpipe/0.1.0"

// Service defines the notification surface exposed to the tracker and the
// daemon.
type Service interface {
	NotifyExportCompleted(ctx context.Context, baseName string) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
	NotifyAllExported(ctx context.Context, total int) error
	NotifyError(ctx context.Context, err error, operation string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		sendExports: cfg.Notifications.Exports,
		sendErrors:  cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	sendExports bool
	sendErrors  bool
}

func (n *ntfyService) NotifyExportCompleted(ctx context.Context, baseName string) error {
	if !n.sendExports {
		return nil
	}
	baseName = strings.TrimSpace(baseName)
	data := payload{
		title:   "emgpipe - Export Complete",
		message: fmt.Sprintf("Cleaned result exported: %s", baseName),
		tags:    []string{"emgpipe", "export", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	if !n.sendExports {
		return nil
	}
	message := fmt.Sprintf("Batch finished: %d converted, %d failed in %s",
		succeeded, failed, duration.Round(time.Second))
	data := payload{
		title:   "emgpipe - Batch Complete",
		message: message,
		tags:    []string{"emgpipe", "batch", "completed"},
	}
	if failed > 0 {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAllExported(ctx context.Context, total int) error {
	if !n.sendExports {
		return nil
	}
	data := payload{
		title:    "emgpipe - Cleaning Complete",
		message:  fmt.Sprintf("All %d edited file(s) exported; results are ready for review", total),
		tags:     []string{"emgpipe", "workflow", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, operation string) error {
	if !n.sendErrors || err == nil {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error: ")
	builder.WriteString(err.Error())
	if operation = strings.TrimSpace(operation); operation != "" {
		builder.WriteString("\nDuring: ")
		builder.WriteString(operation)
	}
	data := payload{
		title:    "emgpipe - Error",
		message:  builder.String(),
		tags:     []string{"emgpipe", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "emgpipe - Test",
		message:  "Notification system test",
		tags:     []string{"emgpipe", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

type noopService struct{}

func (noopService) NotifyExportCompleted(context.Context, string) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyAllExported(context.Context, int) error   { return nil }
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
