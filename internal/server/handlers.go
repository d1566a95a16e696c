package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fourcornerlabs/go-peppol/internal/dispatch"
	"github.com/fourcornerlabs/go-peppol/internal/storage"
	"github.com/fourcornerlabs/go-peppol/internal/transmit"
	"github.com/fourcornerlabs/go-peppol/pkg/discovery"
	"github.com/fourcornerlabs/go-peppol/pkg/document"
	"github.com/fourcornerlabs/go-peppol/pkg/identifier"
)

// Verification

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	addr, err := identifier.Parse(r.PathValue("address"))
	if err != nil {
		s.jsonError(w, "address must be a scheme:identifier pair", http.StatusBadRequest)
		return
	}

	opts := discovery.VerifyOptions{
		IncludeMetadata:     r.URL.Query().Get("metadata") == "true",
		IncludeBusinessCard: r.URL.Query().Get("businessCard") == "true",
	}
	verification, err := s.verifier.VerifyRecipient(r.Context(), addr, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, verification, http.StatusOK)
}

// Entities

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	entities, err := s.store.ListEntities(r.Context(), tenant.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, entities, http.StatusOK)
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	var entity storage.BusinessEntity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := identifier.Parse(entity.Address); err != nil {
		s.jsonError(w, "entity address must be a scheme:identifier pair", http.StatusBadRequest)
		return
	}
	entity.TenantID = tenant.ID

	if err := s.store.CreateEntity(r.Context(), &entity); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, entity, http.StatusCreated)
}

// handleNextDocumentNumber suggests the next document number for an
// entity, advanced from the last successfully transmitted one.
func (s *Server) handleNextDocumentNumber(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	entity, err := s.store.GetEntity(r.Context(), tenant.ID, r.PathValue("entityID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	next := document.IncrementNumber(entity.LastInvoiceNumber)
	s.jsonResponse(w, map[string]string{"number": next}, http.StatusOK)
}

// Documents

type transmitRequest struct {
	Recipient string `json:"recipient,omitempty"`
	Source    string `json:"source,omitempty"`
	Document  string `json:"document"`
}

func (s *Server) handleTransmit(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	var req transmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Document == "" {
		s.jsonError(w, "document body is required", http.StatusBadRequest)
		return
	}

	source := document.SourceAPI
	if req.Source == string(document.SourceEmail) {
		source = document.SourceEmail
	}

	doc, err := s.transmitter.Transmit(r.Context(), &transmit.Request{
		TenantID:  tenant.ID,
		EntityID:  r.PathValue("entityID"),
		Source:    source,
		Recipient: req.Recipient,
		Body:      []byte(req.Document),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, doc, http.StatusCreated)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	filter := &storage.DocumentFilter{
		EntityID:  r.URL.Query().Get("entityId"),
		Direction: storage.Direction(r.URL.Query().Get("direction")),
		Type:      document.Type(r.URL.Query().Get("type")),
		Unread:    r.URL.Query().Get("unread") == "true",
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	docs, err := s.store.ListDocuments(r.Context(), tenant.ID, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, docs, http.StatusOK)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	doc, err := s.store.GetDocument(r.Context(), tenant.ID, r.PathValue("documentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, doc, http.StatusOK)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	read := true
	if v := r.URL.Query().Get("read"); v == "false" {
		read = false
	}

	if err := s.store.MarkDocumentRead(r.Context(), tenant.ID, r.PathValue("documentID"), read); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, map[string]bool{"read": read}, http.StatusOK)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	if err := s.store.DeleteDocument(r.Context(), tenant.ID, r.PathValue("documentID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Webhooks

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	webhooks, err := s.store.ListWebhooks(r.Context(), tenant.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, webhooks, http.StatusOK)
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	var webhook storage.Webhook
	if err := json.NewDecoder(r.Body).Decode(&webhook); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if webhook.URL == "" {
		s.jsonError(w, "webhook url is required", http.StatusBadRequest)
		return
	}
	webhook.TenantID = tenant.ID

	if err := s.store.CreateWebhook(r.Context(), &webhook); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, webhook, http.StatusCreated)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	if err := s.store.DeleteWebhook(r.Context(), tenant.ID, r.PathValue("webhookID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Integrations

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	integrations, err := s.store.ListIntegrations(r.Context(), tenant.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, integrations, http.StatusOK)
}

// handleCreateIntegration activates an integration. The configuration
// is validated against the plugin's current manifest before anything
// is stored; an incompatible configuration is rejected outright.
func (s *Server) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	var integration storage.ActivatedIntegration
	if err := json.NewDecoder(r.Body).Decode(&integration); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if integration.ManifestURL == "" {
		s.jsonError(w, "manifest url is required", http.StatusBadRequest)
		return
	}
	integration.TenantID = tenant.ID

	manifest, err := s.integrations.FetchManifest(r.Context(), integration.ManifestURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := dispatch.ValidateConfiguration(manifest, &integration); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.CreateIntegration(r.Context(), &integration); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, integration, http.StatusCreated)
}

func (s *Server) handleUpdateIntegration(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	existing, err := s.store.GetIntegration(r.Context(), tenant.ID, r.PathValue("integrationID"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var integration storage.ActivatedIntegration
	if err := json.NewDecoder(r.Body).Decode(&integration); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	integration.ID = existing.ID
	integration.TenantID = tenant.ID
	if integration.ManifestURL == "" {
		integration.ManifestURL = existing.ManifestURL
	}
	// State stays plugin-owned; configuration updates never touch it
	integration.State = existing.State
	integration.CreatedAt = existing.CreatedAt

	// Revalidated against the current manifest on every update
	manifest, err := s.integrations.FetchManifest(r.Context(), integration.ManifestURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := dispatch.ValidateConfiguration(manifest, &integration); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.UpdateIntegration(r.Context(), &integration); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, integration, http.StatusOK)
}

func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	if err := s.store.DeleteIntegration(r.Context(), tenant.ID, r.PathValue("integrationID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTaskLogs(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	logs, err := s.store.ListTaskLogs(r.Context(), tenant.ID, r.PathValue("integrationID"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, logs, http.StatusOK)
}
