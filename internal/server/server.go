// Package server provides the HTTP API for the access point node.
//
// # REST API
//
//   - GET    /{tenantID}/api/verify/{address}         - Verify a recipient address
//   - GET    /{tenantID}/api/entities                  - List business entities
//   - POST   /{tenantID}/api/entities                  - Create a business entity
//   - POST   /{tenantID}/api/entities/{entityID}/documents - Transmit a document
//   - GET    /{tenantID}/api/entities/{entityID}/next-number - Suggest the next document number
//   - GET    /{tenantID}/api/documents                 - List transmitted documents
//   - GET    /{tenantID}/api/documents/{documentID}    - Get document details
//   - POST   /{tenantID}/api/documents/{documentID}/read - Toggle the read marker
//   - DELETE /{tenantID}/api/documents/{documentID}    - Delete a document record
//   - GET    /{tenantID}/api/webhooks                  - List webhooks
//   - POST   /{tenantID}/api/webhooks                  - Create a webhook
//   - DELETE /{tenantID}/api/webhooks/{webhookID}      - Delete a webhook
//   - GET    /{tenantID}/api/integrations              - List integrations
//   - POST   /{tenantID}/api/integrations              - Activate an integration
//   - PUT    /{tenantID}/api/integrations/{integrationID} - Update an integration
//   - DELETE /{tenantID}/api/integrations/{integrationID} - Delete an integration
//   - GET    /{tenantID}/api/integrations/{integrationID}/tasks - List task logs
//
// # Health
//
//   - GET /health - Liveness probe
//   - GET /ready  - Readiness probe (checks database connectivity)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fourcornerlabs/go-peppol/internal/dispatch"
	"github.com/fourcornerlabs/go-peppol/internal/faults"
	"github.com/fourcornerlabs/go-peppol/internal/storage"
	"github.com/fourcornerlabs/go-peppol/internal/transmit"
	"github.com/fourcornerlabs/go-peppol/pkg/discovery"
)

// Server is the access point HTTP server
type Server struct {
	logger       *slog.Logger
	httpSrv      *http.Server
	store        storage.Store
	verifier     *discovery.Service
	transmitter  *transmit.Service
	integrations *dispatch.IntegrationClient
	basePath     string
}

// New creates the HTTP server.
func New(store storage.Store, verifier *discovery.Service, transmitter *transmit.Service, integrations *dispatch.IntegrationClient, basePath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:       logger,
		store:        store,
		verifier:     verifier,
		transmitter:  transmitter,
		integrations: integrations,
		basePath:     strings.TrimSuffix(basePath, "/"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting server", "addr", addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	base := s.basePath

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	mux.HandleFunc("GET "+base+"/{tenantID}/api/verify/{address}", s.withTenant(s.handleVerify))

	mux.HandleFunc("GET "+base+"/{tenantID}/api/entities", s.withTenant(s.handleListEntities))
	mux.HandleFunc("POST "+base+"/{tenantID}/api/entities", s.withTenant(s.handleCreateEntity))
	mux.HandleFunc("POST "+base+"/{tenantID}/api/entities/{entityID}/documents", s.withTenant(s.handleTransmit))
	mux.HandleFunc("GET "+base+"/{tenantID}/api/entities/{entityID}/next-number", s.withTenant(s.handleNextDocumentNumber))

	mux.HandleFunc("GET "+base+"/{tenantID}/api/documents", s.withTenant(s.handleListDocuments))
	mux.HandleFunc("GET "+base+"/{tenantID}/api/documents/{documentID}", s.withTenant(s.handleGetDocument))
	mux.HandleFunc("POST "+base+"/{tenantID}/api/documents/{documentID}/read", s.withTenant(s.handleMarkRead))
	mux.HandleFunc("DELETE "+base+"/{tenantID}/api/documents/{documentID}", s.withTenant(s.handleDeleteDocument))

	mux.HandleFunc("GET "+base+"/{tenantID}/api/webhooks", s.withTenant(s.handleListWebhooks))
	mux.HandleFunc("POST "+base+"/{tenantID}/api/webhooks", s.withTenant(s.handleCreateWebhook))
	mux.HandleFunc("DELETE "+base+"/{tenantID}/api/webhooks/{webhookID}", s.withTenant(s.handleDeleteWebhook))

	mux.HandleFunc("GET "+base+"/{tenantID}/api/integrations", s.withTenant(s.handleListIntegrations))
	mux.HandleFunc("POST "+base+"/{tenantID}/api/integrations", s.withTenant(s.handleCreateIntegration))
	mux.HandleFunc("PUT "+base+"/{tenantID}/api/integrations/{integrationID}", s.withTenant(s.handleUpdateIntegration))
	mux.HandleFunc("DELETE "+base+"/{tenantID}/api/integrations/{integrationID}", s.withTenant(s.handleDeleteIntegration))
	mux.HandleFunc("GET "+base+"/{tenantID}/api/integrations/{integrationID}/tasks", s.withTenant(s.handleListTaskLogs))
}

// Middleware

func (s *Server) withTenant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.PathValue("tenantID")
		if tenantID == "" {
			s.jsonError(w, "tenant ID required", http.StatusBadRequest)
			return
		}

		tenant, err := s.store.GetTenant(r.Context(), tenantID)
		if errors.Is(err, storage.ErrNotFound) {
			s.jsonError(w, "tenant not found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.logger.Error("error looking up tenant", "tenant_id", tenantID, "error", err)
			s.jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), tenantContextKey, tenant)
		next(w, r.WithContext(ctx))
	}
}

type contextKey string

const tenantContextKey contextKey = "tenant"

// TenantFromContext extracts the tenant from the request context
func TenantFromContext(ctx context.Context) *storage.Tenant {
	if v := ctx.Value(tenantContextKey); v != nil {
		return v.(*storage.Tenant)
	}
	return nil
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.jsonError(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// Response helpers

func (s *Server) jsonResponse(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]any{"error": map[string]string{"message": message}}, status)
}

// writeError maps an error onto the API surface: user-facing errors
// carry their code and context verbatim, everything else becomes a
// generic internal error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var uerr *faults.UserFacingError
	if errors.As(err, &uerr) {
		body := map[string]string{
			"code":    string(uerr.Code),
			"message": uerr.Message,
		}
		if uerr.AdditionalContext != "" {
			body["additionalContext"] = uerr.AdditionalContext
		}
		status := http.StatusUnprocessableEntity
		if uerr.Code == faults.CodeTransmissionFailed {
			status = http.StatusBadGateway
		}
		s.jsonResponse(w, map[string]any{"error": body}, status)
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		s.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.Error("request failed", "error", err)
	s.jsonError(w, "internal error", http.StatusInternalServerError)
}
