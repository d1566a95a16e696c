package dispatch

import (
	"context"
	"log/slog"

	"github.com/fourcornerlabs/go-peppol/internal/storage"
)

// serviceStore is the storage surface the dispatcher needs.
type serviceStore interface {
	storage.WebhookStore
	storage.IntegrationStore
	storage.TaskLogStore
}

// Service fans one document event out to webhooks and integrations.
// It satisfies the transmit package's Dispatcher contract.
type Service struct {
	store        serviceStore
	webhooks     *WebhookNotifier
	integrations *IntegrationClient
	logger       *slog.Logger
}

// NewService wires the dispatcher.
func NewService(store serviceStore, webhooks *WebhookNotifier, integrations *IntegrationClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		webhooks:     webhooks,
		integrations: integrations,
		logger:       logger,
	}
}

// DocumentSent raises document.sent for a freshly transmitted
// document. Best-effort: every failure is logged, none propagate.
func (s *Service) DocumentSent(ctx context.Context, doc *storage.TransmittedDocument) {
	s.dispatchDocumentEvent(ctx, EventDocumentSent, doc)
}

// DocumentReceived raises document.received for an inbound document.
func (s *Service) DocumentReceived(ctx context.Context, doc *storage.TransmittedDocument) {
	s.dispatchDocumentEvent(ctx, EventDocumentReceived, doc)
}

func (s *Service) dispatchDocumentEvent(ctx context.Context, event string, doc *storage.TransmittedDocument) {
	data := map[string]any{
		"documentId": doc.ID,
		"entityId":   doc.EntityID,
		"type":       doc.Type,
		"sender":     doc.Sender,
		"receiver":   doc.Receiver,
	}
	s.webhooks.Notify(ctx, doc.TenantID, doc.EntityID, event, data)

	integrations, err := s.store.ListIntegrations(ctx, doc.TenantID)
	if err != nil {
		s.logger.Error("failed to list integrations", "tenant", doc.TenantID, "error", err)
		return
	}

	eventContext := map[string]any{"documentId": doc.ID}
	for _, integration := range integrations {
		if integration.EntityID != "" && integration.EntityID != doc.EntityID {
			continue
		}
		if err := s.integrations.PostEvent(ctx, integration, event, eventContext); err != nil {
			s.logger.Warn("integration dispatch failed",
				"integration", integration.ID,
				"event", event,
				"error", err)
		}
	}
}
