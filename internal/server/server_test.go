package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourcornerlabs/go-peppol/internal/dispatch"
	"github.com/fourcornerlabs/go-peppol/internal/storage"
	"github.com/fourcornerlabs/go-peppol/internal/storage/memory"
	"github.com/fourcornerlabs/go-peppol/internal/transmit"
	"github.com/fourcornerlabs/go-peppol/pkg/discovery"
)

const apiInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:CustomizationID>urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0</cbc:CustomizationID>
  <cbc:ID>INV-1</cbc:ID>
  <cac:AccountingCustomerParty>
    <cac:Party><cbc:EndpointID schemeID="0208">0123456789</cbc:EndpointID></cac:Party>
  </cac:AccountingCustomerParty>
</Invoice>`

type testEnv struct {
	store  *memory.Store
	server *httptest.Server
	entity *storage.BusinessEntity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.CreateTenant(ctx, &storage.Tenant{ID: "t1", Name: "Test", Plan: storage.PlanBusiness}))
	entity := &storage.BusinessEntity{
		TenantID:    "t1",
		Name:        "Acme",
		Address:     "0208:0987654321",
		CountryCode: "BE",
	}
	require.NoError(t, store.CreateEntity(ctx, entity))

	verifier := discovery.NewService(discovery.ServiceConfig{Zone: "example.invalid"})
	integrations := dispatch.NewIntegrationClient(store, 0, nil)

	// Both transports simulated: API tests never leave the process
	simulated := transmit.NewSimulatedTransport()
	transmitter := transmit.NewService(store, simulated, simulated, nil, nil, nil, nil)

	srv := New(store, verifier, transmitter, integrations, "/", nil)
	mux := http.NewServeMux()
	srv.registerRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testEnv{store: store, server: ts, entity: entity}
}

func (e *testEnv) request(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.request(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestUnknownTenant(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.request(t, http.MethodGet, "/nope/api/entities", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransmitEndpoint(t *testing.T) {
	env := newTestEnv(t)

	payload, err := json.Marshal(map[string]string{"document": apiInvoice})
	require.NoError(t, err)

	resp, body := env.request(t, http.MethodPost,
		"/t1/api/entities/"+env.entity.ID+"/documents", string(payload))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "invoice", body["type"])
	assert.Equal(t, "0208:0123456789", body["receiver"])

	docs, err := env.store.ListDocuments(context.Background(), "t1", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestTransmitEndpointUndetectableType(t *testing.T) {
	env := newTestEnv(t)

	payload, err := json.Marshal(map[string]string{"document": `<Order xmlns="urn:x"/>`})
	require.NoError(t, err)

	resp, body := env.request(t, http.MethodPost,
		"/t1/api/entities/"+env.entity.ID+"/documents", string(payload))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	errBody := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_DOCUMENT_TYPE", errBody["code"])
}

func TestNextDocumentNumber(t *testing.T) {
	env := newTestEnv(t)

	t.Run("fresh entity starts at 1", func(t *testing.T) {
		resp, body := env.request(t, http.MethodGet,
			"/t1/api/entities/"+env.entity.ID+"/next-number", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1", body["number"])
	})

	t.Run("advances from the last transmitted number", func(t *testing.T) {
		env.entity.LastInvoiceNumber = "INV-041"
		require.NoError(t, env.store.UpdateEntity(context.Background(), env.entity))

		resp, body := env.request(t, http.MethodGet,
			"/t1/api/entities/"+env.entity.ID+"/next-number", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "INV-042", body["number"])
	})
}

func TestWebhookLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, created := env.request(t, http.MethodPost, "/t1/api/webhooks",
		`{"url": "https://example.com/hook", "entityId": "e1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := created["id"].(string)

	resp, _ = env.request(t, http.MethodGet, "/t1/api/webhooks", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	webhooks, err := env.store.ListWebhooks(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, webhooks, 1)

	resp, _ = env.request(t, http.MethodDelete, "/t1/api/webhooks/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestIntegrationCreateValidatesAgainstManifest(t *testing.T) {
	env := newTestEnv(t)

	plugin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dispatch.IntegrationManifest{
			Name:      "Sync",
			AuthTypes: []string{"apiKey"},
			Fields: []dispatch.ManifestField{
				{ID: "ledger", Type: "string", Required: true},
			},
			Capabilities: []dispatch.ManifestCapability{
				{Event: dispatch.EventDocumentSent, Mandatory: true},
			},
		})
	}))
	t.Cleanup(plugin.Close)

	t.Run("valid configuration force-enables mandatory capability", func(t *testing.T) {
		payload := `{
			"manifestUrl": "` + plugin.URL + `",
			"authType": "apiKey",
			"fields": [{"id": "ledger", "stringValue": "main"}],
			"capabilities": [{"event": "document.sent", "enabled": false}]
		}`
		resp, body := env.request(t, http.MethodPost, "/t1/api/integrations", payload)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		caps := body["capabilities"].([]any)
		first := caps[0].(map[string]any)
		assert.Equal(t, true, first["enabled"])
	})

	t.Run("update keeps the creation timestamp", func(t *testing.T) {
		payload := `{
			"manifestUrl": "` + plugin.URL + `",
			"authType": "apiKey",
			"fields": [{"id": "ledger", "stringValue": "main"}]
		}`
		resp, created := env.request(t, http.MethodPost, "/t1/api/integrations", payload)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		id := created["id"].(string)

		before, err := env.store.GetIntegration(context.Background(), "t1", id)
		require.NoError(t, err)
		require.False(t, before.CreatedAt.IsZero())

		payload = `{
			"manifestUrl": "` + plugin.URL + `",
			"authType": "apiKey",
			"fields": [{"id": "ledger", "stringValue": "secondary"}]
		}`
		resp, _ = env.request(t, http.MethodPut, "/t1/api/integrations/"+id, payload)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		after, err := env.store.GetIntegration(context.Background(), "t1", id)
		require.NoError(t, err)
		assert.Equal(t, before.CreatedAt, after.CreatedAt)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		payload := `{
			"manifestUrl": "` + plugin.URL + `",
			"authType": "apiKey",
			"fields": [{"id": "mystery", "stringValue": "x"}]
		}`
		resp, body := env.request(t, http.MethodPost, "/t1/api/integrations", payload)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		errBody := body["error"].(map[string]any)
		assert.Equal(t, "INVALID_INTEGRATION_CONFIG", errBody["code"])
	})
}
