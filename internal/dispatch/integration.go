package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fourcornerlabs/go-peppol/internal/faults"
	"github.com/fourcornerlabs/go-peppol/internal/storage"
)

// ProtocolVersion is the integration plugin protocol version this node
// speaks. A plugin response declaring any other version is rejected
// outright: version drift between host and plugin is unsafe.
const ProtocolVersion = "1.0.0"

// ManifestField declares one configurable field of a plugin.
type ManifestField struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"` // "string" or "boolean"
	Required bool   `json:"required"`
}

// ManifestCapability declares one event a plugin can handle.
type ManifestCapability struct {
	Event     string `json:"event"`
	Name      string `json:"name"`
	Mandatory bool   `json:"mandatory"`
}

// IntegrationManifest is a plugin's self-declared schema, fetched from
// the plugin's own URL and immutable per version.
type IntegrationManifest struct {
	Name         string               `json:"name"`
	Description  string               `json:"description,omitempty"`
	AuthTypes    []string             `json:"authTypes"`
	Fields       []ManifestField      `json:"fields"`
	Capabilities []ManifestCapability `json:"capabilities"`
}

func (m *IntegrationManifest) field(id string) (ManifestField, bool) {
	for _, f := range m.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return ManifestField{}, false
}

func (m *IntegrationManifest) capability(event string) (ManifestCapability, bool) {
	for _, c := range m.Capabilities {
		if c.Event == event {
			return c, true
		}
	}
	return ManifestCapability{}, false
}

// pluginRequest is the envelope POSTed to a plugin event endpoint.
type pluginRequest struct {
	Version string                     `json:"version"`
	Auth    pluginAuth                 `json:"auth"`
	Fields  map[string]any             `json:"fields"`
	State   map[string]json.RawMessage `json:"state"`
	Context map[string]any             `json:"context"`
}

type pluginAuth struct {
	Type       string `json:"type"`
	Credential string `json:"credential"`
}

// pluginResponse is a plugin's reply.
type pluginResponse struct {
	Version string                     `json:"version"`
	State   map[string]json.RawMessage `json:"state,omitempty"`
	Tasks   []pluginTask               `json:"tasks,omitempty"`
}

type pluginTask struct {
	Task    string `json:"task"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// integrationStore is the storage surface the client needs.
type integrationStore interface {
	storage.IntegrationStore
	storage.TaskLogStore
}

// IntegrationClient speaks the plugin HTTP protocol.
type IntegrationClient struct {
	store  integrationStore
	client *http.Client
	logger *slog.Logger
}

// NewIntegrationClient creates a client with a bounded per-request
// timeout.
func NewIntegrationClient(store integrationStore, timeout time.Duration, logger *slog.Logger) *IntegrationClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrationClient{
		store:  store,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// FetchManifest retrieves a plugin's manifest from
// <baseURL>/integration.manifest.
func (c *IntegrationClient) FetchManifest(ctx context.Context, baseURL string) (*IntegrationManifest, error) {
	url := strings.TrimSuffix(baseURL, "/") + "/integration.manifest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating manifest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest endpoint returned status %d", resp.StatusCode)
	}

	var manifest IntegrationManifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &manifest, nil
}

// ValidateConfiguration checks an integration's configuration against
// the plugin's current manifest. Mandatory capabilities that are
// present but disabled are force-enabled in place; missing mandatory
// capabilities are added enabled. Any structural incompatibility is a
// rejection, never a partial apply.
func ValidateConfiguration(manifest *IntegrationManifest, integration *storage.ActivatedIntegration) error {
	authOK := false
	for _, t := range manifest.AuthTypes {
		if t == integration.AuthType {
			authOK = true
			break
		}
	}
	if !authOK {
		return faults.New(faults.CodeInvalidIntegrationConfig,
			"auth type %q is not supported by this integration", integration.AuthType)
	}

	for _, f := range integration.Fields {
		if _, ok := manifest.field(f.ID); !ok {
			return faults.New(faults.CodeInvalidIntegrationConfig,
				"configured field %q is not declared in the integration manifest", f.ID)
		}
	}
	for _, mf := range manifest.Fields {
		if !mf.Required {
			continue
		}
		fv, ok := integration.Field(mf.ID)
		if !ok || (fv.StringValue == nil && fv.BoolValue == nil) {
			return faults.New(faults.CodeInvalidIntegrationConfig,
				"required field %q has no configured value", mf.ID)
		}
	}

	for _, cv := range integration.Capabilities {
		if _, ok := manifest.capability(cv.Event); !ok {
			return faults.New(faults.CodeInvalidIntegrationConfig,
				"configured capability %q is not declared in the integration manifest", cv.Event)
		}
	}
	for _, mc := range manifest.Capabilities {
		if !mc.Mandatory {
			continue
		}
		found := false
		for i, cv := range integration.Capabilities {
			if cv.Event == mc.Event {
				integration.Capabilities[i].Enabled = true
				found = true
				break
			}
		}
		if !found {
			integration.Capabilities = append(integration.Capabilities,
				storage.CapabilityValue{Event: mc.Event, Enabled: true})
		}
	}

	return nil
}

// PostEvent invokes a plugin for one event. Dispatch only happens when
// the integration's configuration enables the event's capability. The
// plugin's returned state wholesale replaces the stored state, and
// reported tasks are persisted as task log entries.
func (c *IntegrationClient) PostEvent(ctx context.Context, integration *storage.ActivatedIntegration, event string, eventContext map[string]any) error {
	if !integration.CapabilityEnabled(event) {
		return nil
	}

	fields := make(map[string]any, len(integration.Fields))
	for _, f := range integration.Fields {
		switch {
		case f.StringValue != nil:
			fields[f.ID] = *f.StringValue
		case f.BoolValue != nil:
			fields[f.ID] = *f.BoolValue
		}
	}

	reqCtx := map[string]any{
		"tenantId": integration.TenantID,
	}
	if integration.EntityID != "" {
		reqCtx["entityId"] = integration.EntityID
	}
	for k, v := range eventContext {
		reqCtx[k] = v
	}

	body, err := json.Marshal(pluginRequest{
		Version: ProtocolVersion,
		Auth:    pluginAuth{Type: integration.AuthType, Credential: integration.AuthCredential},
		Fields:  fields,
		State:   integration.State,
		Context: reqCtx,
	})
	if err != nil {
		return fmt.Errorf("encoding plugin request: %w", err)
	}

	url := strings.TrimSuffix(integration.ManifestURL, "/") + "/" + event
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating plugin request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "go-peppol-integration/1.0")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("posting %s to integration %s: %w", event, integration.ID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading plugin response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("integration returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var pluginResp pluginResponse
	if err := json.Unmarshal(respBody, &pluginResp); err != nil {
		return fmt.Errorf("decoding plugin response: %w", err)
	}

	if pluginResp.Version != ProtocolVersion {
		return faults.New(faults.CodeUnsupportedPluginVersion,
			"unsupported response version %q from integration, expected %q", pluginResp.Version, ProtocolVersion)
	}

	if pluginResp.State != nil {
		if err := c.store.UpdateIntegrationState(ctx, integration.TenantID, integration.ID, pluginResp.State); err != nil {
			return fmt.Errorf("storing integration state: %w", err)
		}
		integration.State = pluginResp.State
	}

	for _, task := range pluginResp.Tasks {
		entry := &storage.IntegrationTaskLog{
			TenantID:      integration.TenantID,
			IntegrationID: integration.ID,
			TaskName:      task.Task,
			Success:       task.Success,
			Message:       task.Message,
			Context:       task.Context,
		}
		if err := c.store.CreateTaskLog(ctx, entry); err != nil {
			c.logger.Error("failed to persist task log",
				"integration", integration.ID,
				"task", task.Task,
				"error", err)
		}
	}

	return nil
}
