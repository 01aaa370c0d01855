package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/plugin"
)

// Webhook POSTs events as JSON to a configured URL. Works for Slack
// incoming webhooks and anything else that accepts JSON.
type Webhook struct {
	url    string
	client *http.Client
}

// WebhookModule returns the builtin module descriptor. The URL comes from
// the notifier's config entry.
func WebhookModule() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotNotifier,
			Name:        "webhook",
			Description: "POSTs events as JSON to a URL",
		},
		New: func(options map[string]any) (any, error) {
			url, _ := options["url"].(string)
			if url == "" {
				return nil, errors.New("webhook url is required")
			}
			return &Webhook{
				url:    url,
				client: &http.Client{Timeout: notifyTimeout},
			}, nil
		},
	}
}

// Name implements plugin.Notifier.
func (w *Webhook) Name() string { return "webhook" }

// webhookPayload is the wire shape. "text" duplicates the message so Slack
// incoming webhooks render something without transformation.
type webhookPayload struct {
	Text  string        `json:"text"`
	Event *events.Event `json:"event"`
}

// Notify implements plugin.Notifier.
func (w *Webhook) Notify(ctx context.Context, event *events.Event) error {
	body, err := json.Marshal(webhookPayload{
		Text:  fmt.Sprintf("[%s] %s: %s", event.Priority, event.Type, event.Message),
		Event: event,
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
