package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subalign/internal/config"
	"subalign/internal/tasks"
)

const userAgent = "subalign/1"

// Service defines the notification surface exposed to the worker pool.
type Service interface {
	NotifyTaskFinished(ctx context.Context, audioName string, task tasks.Task) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onSuccess: cfg.Notifications.NotifyOnSuccess,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
}

func (n *ntfyService) NotifyTaskFinished(ctx context.Context, audioName string, task tasks.Task) error {
	audioName = strings.TrimSpace(audioName)
	if audioName == "" {
		audioName = task.ID
	}

	switch task.Status {
	case tasks.StatusCompleted:
		if !n.onSuccess {
			return nil
		}
		return n.send(ctx, payload{
			title:   "subalign - Subtitles Ready",
			message: fmt.Sprintf("✅ %s aligned: %s", audioName, task.OutputFile),
			tags:    []string{"subalign", "completed"},
		})
	case tasks.StatusError:
		if task.ErrorKind == tasks.KindCancelled {
			return nil
		}
		var builder strings.Builder
		builder.WriteString("❌ ")
		builder.WriteString(audioName)
		builder.WriteString(" failed")
		if task.ErrorKind != "" {
			builder.WriteString(" (")
			builder.WriteString(string(task.ErrorKind))
			builder.WriteString(")")
		}
		builder.WriteString(": ")
		if msg := strings.TrimSpace(task.Error); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return n.send(ctx, payload{
			title:    "subalign - Alignment Failed",
			message:  builder.String(),
			tags:     []string{"subalign", "error"},
			priority: "high",
		})
	default:
		return nil
	}
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "subalign - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"subalign", "test"},
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

type noopService struct{}

func (noopService) NotifyTaskFinished(context.Context, string, tasks.Task) error { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
