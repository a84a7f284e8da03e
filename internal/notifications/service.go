package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"copyengine/internal/config"
)

const userAgent = "copyengine/1.0"

// Event names a job outcome worth telling an operator about.
type Event string

const (
	EventJobFailed    Event = "job_failed"
	EventJobSucceeded Event = "job_succeeded"
	EventTest         Event = "test"
)

// Payload carries event details. Known keys: jobId, kind, stage, code, message.
type Payload map[string]string

// Service publishes operator alerts.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService returns an ntfy publisher, or a noop when no topic is configured.
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
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		notifySuccess: cfg.Notifications.NotifySuccess,
	}
}

// Enabled reports whether svc actually delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	jobID := strings.TrimSpace(payload["jobId"])
	kind := valueOr(payload["kind"], "job")
	switch event {
	case EventJobFailed:
		body := fmt.Sprintf("%s %s failed: %s", kind, jobID, valueOr(payload["code"], "INTERNAL_ERROR"))
		if detail := strings.TrimSpace(payload["message"]); detail != "" {
			body += "\n" + detail
		}
		return message{
			title:    "copyengine - Job Failed",
			body:     body,
			tags:     []string{"copyengine", "error", kind},
			priority: "high",
		}, true
	case EventJobSucceeded:
		if !n.notifySuccess {
			return message{}, false
		}
		return message{
			title: "copyengine - Job Complete",
			body:  fmt.Sprintf("%s %s succeeded", kind, jobID),
			tags:  []string{"copyengine", "completed", kind},
		}, true
	case EventTest:
		return message{
			title:    "copyengine - Test",
			body:     "Notification system test",
			tags:     []string{"copyengine", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

func valueOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
