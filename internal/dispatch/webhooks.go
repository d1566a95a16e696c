// Package dispatch fans out document lifecycle events to registered
// webhooks and activated third-party integrations.
//
// All dispatch is best-effort with per-target isolation: one
// subscriber's failure is logged and never blocks delivery to the
// others, and never fails the operation that raised the event.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fourcornerlabs/go-peppol/internal/storage"
)

// Event names raised by the node.
const (
	EventDocumentSent     = "document.sent"
	EventDocumentReceived = "document.received"
)

// WebhookNotifier delivers events to webhook subscriptions.
type WebhookNotifier struct {
	store  storage.WebhookStore
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier with a bounded per-request
// timeout.
func NewWebhookNotifier(store storage.WebhookStore, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		store:  store,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify posts {eventType, ...data} to every webhook matching the
// tenant and entity: those scoped to the entity plus the tenant-wide
// unscoped ones. Targets are called sequentially; each failure is
// logged and the loop continues.
func (n *WebhookNotifier) Notify(ctx context.Context, tenantID, entityID, eventType string, data map[string]any) {
	webhooks, err := n.store.ListWebhooksForEntity(ctx, tenantID, entityID)
	if err != nil {
		n.logger.Error("failed to list webhooks", "tenant", tenantID, "entity", entityID, "error", err)
		return
	}

	envelope := make(map[string]any, len(data)+1)
	for k, v := range data {
		envelope[k] = v
	}
	envelope["eventType"] = eventType

	payload, err := json.Marshal(envelope)
	if err != nil {
		n.logger.Error("failed to encode webhook payload", "event", eventType, "error", err)
		return
	}

	for _, webhook := range webhooks {
		if err := n.post(ctx, webhook.URL, payload); err != nil {
			n.logger.Warn("webhook delivery failed",
				"webhook", webhook.ID,
				"url", webhook.URL,
				"event", eventType,
				"error", err)
		}
	}
}

func (n *WebhookNotifier) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "go-peppol-webhook/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
