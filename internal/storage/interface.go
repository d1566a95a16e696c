// Package storage provides data storage interfaces and implementations
// for the access point node.
//
// # Interface Design
//
// The storage layer is organized into focused interfaces:
//
//   - [TenantStore]: Tenant accounts and plan entitlements
//   - [EntityStore]: Business entities (registered participant addresses)
//   - [DocumentStore]: Transmitted document records
//   - [WebhookStore]: Webhook subscriptions
//   - [IntegrationStore]: Activated third-party integrations
//   - [TaskLogStore]: Integration task log entries
//   - [UsageStore]: Billing-relevant usage events
//
// The [Store] interface combines all sub-stores for convenience.
//
// # Implementations
//
// The mongodb sub-package provides a production MongoDB implementation.
// The memory sub-package provides an in-memory implementation for tests.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from
// multiple goroutines.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fourcornerlabs/go-peppol/pkg/document"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the main storage interface combining all sub-stores
type Store interface {
	TenantStore
	EntityStore
	DocumentStore
	WebhookStore
	IntegrationStore
	TaskLogStore
	UsageStore

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}

// TenantStore manages tenant accounts
type TenantStore interface {
	// CreateTenant creates a new tenant
	CreateTenant(ctx context.Context, tenant *Tenant) error

	// GetTenant retrieves a tenant by ID
	GetTenant(ctx context.Context, id string) (*Tenant, error)

	// UpdateTenant updates a tenant
	UpdateTenant(ctx context.Context, tenant *Tenant) error

	// ListTenants returns all tenants
	ListTenants(ctx context.Context) ([]*Tenant, error)
}

// EntityStore manages business entities
type EntityStore interface {
	// CreateEntity creates a new business entity
	CreateEntity(ctx context.Context, entity *BusinessEntity) error

	// GetEntity retrieves a business entity by ID
	GetEntity(ctx context.Context, tenantID, id string) (*BusinessEntity, error)

	// GetEntityByAddress retrieves a business entity by participant address
	GetEntityByAddress(ctx context.Context, tenantID, address string) (*BusinessEntity, error)

	// UpdateEntity updates a business entity
	UpdateEntity(ctx context.Context, entity *BusinessEntity) error

	// DeleteEntity deletes a business entity
	DeleteEntity(ctx context.Context, tenantID, id string) error

	// ListEntities returns entities for a tenant
	ListEntities(ctx context.Context, tenantID string) ([]*BusinessEntity, error)
}

// DocumentStore manages transmitted document records
type DocumentStore interface {
	// CreateDocument stores a new transmitted document record
	CreateDocument(ctx context.Context, doc *TransmittedDocument) error

	// GetDocument retrieves a document by ID
	GetDocument(ctx context.Context, tenantID, id string) (*TransmittedDocument, error)

	// MarkDocumentRead updates the read marker of a document
	MarkDocumentRead(ctx context.Context, tenantID, id string, read bool) error

	// DeleteDocument deletes a document record
	DeleteDocument(ctx context.Context, tenantID, id string) error

	// ListDocuments returns documents with filtering
	ListDocuments(ctx context.Context, tenantID string, filter *DocumentFilter) ([]*TransmittedDocument, error)

	// CountDocuments returns document count with filtering
	CountDocuments(ctx context.Context, tenantID string, filter *DocumentFilter) (int64, error)
}

// WebhookStore manages webhook subscriptions
type WebhookStore interface {
	// CreateWebhook creates a new webhook subscription
	CreateWebhook(ctx context.Context, webhook *Webhook) error

	// GetWebhook retrieves a webhook by ID
	GetWebhook(ctx context.Context, tenantID, id string) (*Webhook, error)

	// DeleteWebhook deletes a webhook subscription
	DeleteWebhook(ctx context.Context, tenantID, id string) error

	// ListWebhooksForEntity returns the webhooks matching an entity:
	// those scoped to it plus the tenant-wide unscoped ones
	ListWebhooksForEntity(ctx context.Context, tenantID, entityID string) ([]*Webhook, error)

	// ListWebhooks returns all webhooks for a tenant
	ListWebhooks(ctx context.Context, tenantID string) ([]*Webhook, error)
}

// IntegrationStore manages activated integrations
type IntegrationStore interface {
	// CreateIntegration stores a newly activated integration
	CreateIntegration(ctx context.Context, integration *ActivatedIntegration) error

	// GetIntegration retrieves an integration by ID
	GetIntegration(ctx context.Context, tenantID, id string) (*ActivatedIntegration, error)

	// UpdateIntegration updates an integration (configuration or state)
	UpdateIntegration(ctx context.Context, integration *ActivatedIntegration) error

	// UpdateIntegrationState overwrites just the opaque state blob
	UpdateIntegrationState(ctx context.Context, tenantID, id string, state map[string]json.RawMessage) error

	// DeleteIntegration deletes an integration
	DeleteIntegration(ctx context.Context, tenantID, id string) error

	// ListIntegrations returns integrations for a tenant
	ListIntegrations(ctx context.Context, tenantID string) ([]*ActivatedIntegration, error)

	// ListAllIntegrations returns every activated integration across
	// tenants, for scheduled dispatch sweeps
	ListAllIntegrations(ctx context.Context) ([]*ActivatedIntegration, error)
}

// TaskLogStore manages integration task log entries
type TaskLogStore interface {
	// CreateTaskLog persists one task log entry
	CreateTaskLog(ctx context.Context, entry *IntegrationTaskLog) error

	// ListTaskLogs returns task logs for an integration, newest first
	ListTaskLogs(ctx context.Context, tenantID, integrationID string, limit int) ([]*IntegrationTaskLog, error)
}

// UsageStore manages billing-relevant usage events
type UsageStore interface {
	// CreateUsageEvent records one billable event
	CreateUsageEvent(ctx context.Context, event *UsageEvent) error

	// CountUsageEvents returns the usage count for a tenant since a time
	CountUsageEvents(ctx context.Context, tenantID string, since time.Time) (int64, error)
}

// Domain models

// Tenant represents an organization account on the node
type Tenant struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Plan      Plan      `bson:"plan" json:"plan"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Plan is a tenant's subscription tier, gating integration dispatch.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanBusiness Plan = "business"
)

// AllowsIntegrations reports whether the plan entitles the tenant to
// third-party integration dispatch.
func (p Plan) AllowsIntegrations() bool {
	return p == PlanStandard || p == PlanBusiness
}

// BusinessEntity is one registered participant address owned by a
// tenant. Sandbox entities exist for experimentation: their documents
// are simulated rather than really transmitted unless the entity opts
// into the live test network.
type BusinessEntity struct {
	ID       string `bson:"_id" json:"id"`
	TenantID string `bson:"tenant_id" json:"tenantId"`
	Name     string `bson:"name" json:"name"`

	// Address is the entity's registered participant address,
	// serialized as scheme:identifier
	Address     string `bson:"address" json:"address"`
	CountryCode string `bson:"country_code" json:"countryCode"`

	Sandbox        bool `bson:"sandbox" json:"sandbox"`
	UseTestNetwork bool `bson:"use_test_network" json:"useTestNetwork"`

	// LastInvoiceNumber seeds the next suggested document number
	LastInvoiceNumber string `bson:"last_invoice_number,omitempty" json:"lastInvoiceNumber,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Direction of a document relative to this node
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// TransmittedDocument is the durable record of one transmission
// attempt. Created exactly once per attempt; never mutated except for
// the read marker.
type TransmittedDocument struct {
	ID        string    `bson:"_id" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenantId"`
	EntityID  string    `bson:"entity_id" json:"entityId"`
	Direction Direction `bson:"direction" json:"direction"`

	Sender   string `bson:"sender" json:"sender"`
	Receiver string `bson:"receiver" json:"receiver"`

	DocumentTypeID string `bson:"document_type_id" json:"documentTypeId"`
	ProcessID      string `bson:"process_id" json:"processId"`

	// Body is the raw document as submitted
	Body []byte `bson:"body" json:"-"`

	// Type is the detected business type; "unknown" documents may still
	// be transmitted raw
	Type document.Type `bson:"type" json:"type"`

	// Parsed is nil when no structured parser matched the type
	Parsed *document.Parsed `bson:"parsed,omitempty" json:"parsed,omitempty"`

	Validation *document.ValidationResult `bson:"validation,omitempty" json:"validation,omitempty"`

	// Transport outcome
	Success           bool   `bson:"success" json:"success"`
	PeppolMessageID   string `bson:"peppol_message_id,omitempty" json:"peppolMessageId,omitempty"`
	SBDHInstanceID    string `bson:"sbdh_instance_id,omitempty" json:"sbdhInstanceId,omitempty"`
	FailureCode       string `bson:"failure_code,omitempty" json:"failureCode,omitempty"`
	FailureMessage    string `bson:"failure_message,omitempty" json:"failureMessage,omitempty"`
	AdditionalContext string `bson:"additional_context,omitempty" json:"additionalContext,omitempty"`

	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

type DocumentFilter struct {
	EntityID  string
	Direction Direction
	Type      document.Type
	Unread    bool
	Since     *time.Time
	Limit     int
	Offset    int
}

// Webhook is a tenant-owned event subscription. An empty EntityID
// means the webhook receives events for every entity under its tenant.
type Webhook struct {
	ID       string `bson:"_id" json:"id"`
	TenantID string `bson:"tenant_id" json:"tenantId"`
	EntityID string `bson:"entity_id,omitempty" json:"entityId,omitempty"`
	URL      string `bson:"url" json:"url"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// FieldValue is one configured field of an integration: a tagged
// variant over string and boolean payloads keyed by the manifest field
// id. Exactly one of StringValue and BoolValue is set.
type FieldValue struct {
	ID          string  `bson:"id" json:"id"`
	StringValue *string `bson:"string_value,omitempty" json:"stringValue,omitempty"`
	BoolValue   *bool   `bson:"bool_value,omitempty" json:"boolValue,omitempty"`
}

// CapabilityValue records whether one manifest capability is enabled.
type CapabilityValue struct {
	// Event is the capability's event name, e.g. "document.received"
	Event   string `bson:"event" json:"event"`
	Enabled bool   `bson:"enabled" json:"enabled"`
}

// ActivatedIntegration is a tenant's activation of a third-party
// integration plugin. The configuration must validate against the
// plugin's current manifest on every create and update.
type ActivatedIntegration struct {
	ID       string `bson:"_id" json:"id"`
	TenantID string `bson:"tenant_id" json:"tenantId"`
	EntityID string `bson:"entity_id,omitempty" json:"entityId,omitempty"`

	// ManifestURL is the plugin's base URL; the manifest lives at
	// <url>/integration.manifest
	ManifestURL string `bson:"manifest_url" json:"manifestUrl"`

	AuthType       string `bson:"auth_type" json:"authType"`
	AuthCredential string `bson:"auth_credential" json:"-"`

	Fields       []FieldValue      `bson:"fields" json:"fields"`
	Capabilities []CapabilityValue `bson:"capabilities" json:"capabilities"`

	// State is plugin-owned and opaque to the node; it is round-tripped
	// on every invocation and wholesale replaced when the plugin
	// returns a new one
	State map[string]json.RawMessage `bson:"state,omitempty" json:"state,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// CapabilityEnabled reports whether the integration's configuration
// enables the given event.
func (i *ActivatedIntegration) CapabilityEnabled(event string) bool {
	for _, c := range i.Capabilities {
		if c.Event == event {
			return c.Enabled
		}
	}
	return false
}

// Field returns the configured value for a field id.
func (i *ActivatedIntegration) Field(id string) (FieldValue, bool) {
	for _, f := range i.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldValue{}, false
}

// IntegrationTaskLog is one task outcome reported by a plugin.
type IntegrationTaskLog struct {
	ID            string `bson:"_id" json:"id"`
	TenantID      string `bson:"tenant_id" json:"tenantId"`
	IntegrationID string `bson:"integration_id" json:"integrationId"`

	TaskName string `bson:"task_name" json:"taskName"`
	Success  bool   `bson:"success" json:"success"`
	Message  string `bson:"message" json:"message"`
	Context  string `bson:"context,omitempty" json:"context,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// UsageEvent is one billing-relevant event. Sandbox activity is never
// recorded here.
type UsageEvent struct {
	ID         string    `bson:"_id" json:"id"`
	TenantID   string    `bson:"tenant_id" json:"tenantId"`
	EntityID   string    `bson:"entity_id" json:"entityId"`
	DocumentID string    `bson:"document_id" json:"documentId"`
	Kind       string    `bson:"kind" json:"kind"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}
