// Package notify fans engine events out to downstream consumers. Dispatch is
// best-effort and single-attempt: a failed delivery is logged and never
// propagated back as a transition failure.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Dispatcher is the sink surface the engine consumes.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]any) error
}

// WebhookDispatcher posts engine events to a configured endpoint.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

// NewWebhookDispatcher builds a dispatcher with a bounded per-request
// timeout so a slow receiver cannot stall a sweep or a transition.
func NewWebhookDispatcher(url string, timeout time.Duration) *WebhookDispatcher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, eventType string, payload map[string]any) error {
	body := map[string]any{
		"event_type": eventType,
		"payload":    payload,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LoggingDispatcher records dispatches on the process log. Used when no
// webhook endpoint is configured.
type LoggingDispatcher struct {
	logger *slog.Logger
}

func NewLoggingDispatcher(logger *slog.Logger) *LoggingDispatcher {
	return &LoggingDispatcher{logger: logger}
}

func (d *LoggingDispatcher) Dispatch(ctx context.Context, eventType string, payload map[string]any) error {
	d.logger.InfoContext(ctx, "notification dispatched", "event_type", eventType, "payload", payload)
	return nil
}
