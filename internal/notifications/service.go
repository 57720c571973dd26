package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/journal"
)

const userAgent = "bindery/1.0"

// Service defines the notification surface exposed to pipeline and
// journal components.
type Service interface {
	NotifyError(ctx context.Context, err error, context string) error
	NotifyRunCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifySilentJournals(ctx context.Context, journals []journal.Journal, silenceDays int) error
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
		errors:      cfg.Notifications.Errors,
		healthCheck: cfg.Notifications.HealthCheck,
		runSummary:  cfg.Notifications.RunSummary,
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
	errors      bool
	healthCheck bool
	runSummary  bool
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, errContext string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Pipeline error")
	if errContext = strings.TrimSpace(errContext); errContext != "" {
		builder.WriteString(" in ")
		builder.WriteString(errContext)
	}
	if err != nil {
		builder.WriteString(": ")
		builder.WriteString(err.Error())
	}
	data := payload{
		title:    "Bindery - Error",
		message:  builder.String(),
		tags:     []string{"bindery", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.runSummary {
		return nil
	}
	data := payload{
		title:   "Bindery - Run Completed",
		message: fmt.Sprintf("Processed %d deposits (%d failed) in %s", processed, failed, duration.Round(time.Second)),
		tags:    []string{"bindery", "run", "completed"},
	}
	if failed > 0 {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySilentJournals(ctx context.Context, journals []journal.Journal, silenceDays int) error {
	if !n.healthCheck || len(journals) == 0 {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "%d journal(s) silent for more than %d days:\n", len(journals), silenceDays)
	for _, j := range journals {
		title := strings.TrimSpace(j.Title)
		if title == "" {
			title = j.UUID
		}
		builder.WriteString("- ")
		builder.WriteString(title)
		builder.WriteString("\n")
	}
	data := payload{
		title:    "Bindery - Silent Journals",
		message:  strings.TrimRight(builder.String(), "\n"),
		tags:     []string{"bindery", "journals", "silent"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Bindery - Test",
		message:  "Notification system test",
		tags:     []string{"bindery", "test"},
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

func (noopService) NotifyError(context.Context, error, string) error                 { return nil }
func (noopService) NotifyRunCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifySilentJournals(context.Context, []journal.Journal, int) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
