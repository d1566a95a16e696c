// Package memory implements storage interfaces with in-process maps.
// Intended for tests and local development only.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fourcornerlabs/go-peppol/internal/storage"
)

// Store implements storage.Store in memory.
type Store struct {
	mu sync.RWMutex

	tenants      map[string]*storage.Tenant
	entities     map[string]*storage.BusinessEntity
	documents    map[string]*storage.TransmittedDocument
	webhooks     map[string]*storage.Webhook
	integrations map[string]*storage.ActivatedIntegration
	taskLogs     []*storage.IntegrationTaskLog
	usage        []*storage.UsageEvent
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		tenants:      make(map[string]*storage.Tenant),
		entities:     make(map[string]*storage.BusinessEntity),
		documents:    make(map[string]*storage.TransmittedDocument),
		webhooks:     make(map[string]*storage.Webhook),
		integrations: make(map[string]*storage.ActivatedIntegration),
	}
}

func (s *Store) Close(ctx context.Context) error { return nil }
func (s *Store) Ping(ctx context.Context) error  { return nil }

// TenantStore implementation

func (s *Store) CreateTenant(ctx context.Context, tenant *storage.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*storage.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) UpdateTenant(ctx context.Context, tenant *storage.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant.ID]; !ok {
		return storage.ErrNotFound
	}
	tenant.UpdatedAt = time.Now()
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *Store) ListTenants(ctx context.Context) ([]*storage.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*storage.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EntityStore implementation

func (s *Store) CreateEntity(ctx context.Context, entity *storage.BusinessEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = entity.CreatedAt
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	cp := *entity
	s.entities[entity.ID] = &cp
	return nil
}

func (s *Store) GetEntity(ctx context.Context, tenantID, id string) (*storage.BusinessEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok || e.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) GetEntityByAddress(ctx context.Context, tenantID, address string) (*storage.BusinessEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.TenantID == tenantID && e.Address == address {
			cp := *e
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateEntity(ctx context.Context, entity *storage.BusinessEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entities[entity.ID]
	if !ok || existing.TenantID != entity.TenantID {
		return storage.ErrNotFound
	}
	entity.UpdatedAt = time.Now()
	cp := *entity
	s.entities[entity.ID] = &cp
	return nil
}

func (s *Store) DeleteEntity(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[id]; ok && e.TenantID == tenantID {
		delete(s.entities, id)
	}
	return nil
}

func (s *Store) ListEntities(ctx context.Context, tenantID string) ([]*storage.BusinessEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.BusinessEntity
	for _, e := range s.entities {
		if e.TenantID == tenantID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DocumentStore implementation

func (s *Store) CreateDocument(ctx context.Context, doc *storage.TransmittedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.CreatedAt = time.Now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *Store) GetDocument(ctx context.Context, tenantID, id string) (*storage.TransmittedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok || d.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) MarkDocumentRead(ctx context.Context, tenantID, id string, read bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok || d.TenantID != tenantID {
		return storage.ErrNotFound
	}
	d.Read = read
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.documents[id]; ok && d.TenantID == tenantID {
		delete(s.documents, id)
	}
	return nil
}

func matchesFilter(d *storage.TransmittedDocument, filter *storage.DocumentFilter) bool {
	if filter == nil {
		return true
	}
	if filter.EntityID != "" && d.EntityID != filter.EntityID {
		return false
	}
	if filter.Direction != "" && d.Direction != filter.Direction {
		return false
	}
	if filter.Type != "" && d.Type != filter.Type {
		return false
	}
	if filter.Unread && d.Read {
		return false
	}
	if filter.Since != nil && d.CreatedAt.Before(*filter.Since) {
		return false
	}
	return true
}

func (s *Store) ListDocuments(ctx context.Context, tenantID string, filter *storage.DocumentFilter) ([]*storage.TransmittedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.TransmittedDocument
	for _, d := range s.documents {
		if d.TenantID == tenantID && matchesFilter(d, filter) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(out) {
				return nil, nil
			}
			out = out[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(out) {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

func (s *Store) CountDocuments(ctx context.Context, tenantID string, filter *storage.DocumentFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, d := range s.documents {
		if d.TenantID == tenantID && matchesFilter(d, filter) {
			n++
		}
	}
	return n, nil
}

// WebhookStore implementation

func (s *Store) CreateWebhook(ctx context.Context, webhook *storage.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	webhook.CreatedAt = time.Now()
	if webhook.ID == "" {
		webhook.ID = uuid.NewString()
	}
	cp := *webhook
	s.webhooks[webhook.ID] = &cp
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, tenantID, id string) (*storage.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.webhooks[id]
	if !ok || w.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *Store) DeleteWebhook(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.webhooks[id]; ok && w.TenantID == tenantID {
		delete(s.webhooks, id)
	}
	return nil
}

func (s *Store) ListWebhooksForEntity(ctx context.Context, tenantID, entityID string) ([]*storage.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Webhook
	for _, w := range s.webhooks {
		if w.TenantID != tenantID {
			continue
		}
		if w.EntityID == "" || w.EntityID == entityID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListWebhooks(ctx context.Context, tenantID string) ([]*storage.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Webhook
	for _, w := range s.webhooks {
		if w.TenantID == tenantID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// IntegrationStore implementation

func (s *Store) CreateIntegration(ctx context.Context, integration *storage.ActivatedIntegration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	integration.CreatedAt = time.Now()
	integration.UpdatedAt = integration.CreatedAt
	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}
	cp := *integration
	s.integrations[integration.ID] = &cp
	return nil
}

func (s *Store) GetIntegration(ctx context.Context, tenantID, id string) (*storage.ActivatedIntegration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.integrations[id]
	if !ok || i.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (s *Store) UpdateIntegration(ctx context.Context, integration *storage.ActivatedIntegration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.integrations[integration.ID]
	if !ok || existing.TenantID != integration.TenantID {
		return storage.ErrNotFound
	}
	integration.UpdatedAt = time.Now()
	cp := *integration
	s.integrations[integration.ID] = &cp
	return nil
}

func (s *Store) UpdateIntegrationState(ctx context.Context, tenantID, id string, state map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.integrations[id]
	if !ok || i.TenantID != tenantID {
		return storage.ErrNotFound
	}
	i.State = state
	i.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteIntegration(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.integrations[id]; ok && i.TenantID == tenantID {
		delete(s.integrations, id)
	}
	return nil
}

func (s *Store) ListIntegrations(ctx context.Context, tenantID string) ([]*storage.ActivatedIntegration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.ActivatedIntegration
	for _, i := range s.integrations {
		if i.TenantID == tenantID {
			cp := *i
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAllIntegrations(ctx context.Context) ([]*storage.ActivatedIntegration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*storage.ActivatedIntegration, 0, len(s.integrations))
	for _, i := range s.integrations {
		cp := *i
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TaskLogStore implementation

func (s *Store) CreateTaskLog(ctx context.Context, entry *storage.IntegrationTaskLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.CreatedAt = time.Now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	cp := *entry
	s.taskLogs = append(s.taskLogs, &cp)
	return nil
}

func (s *Store) ListTaskLogs(ctx context.Context, tenantID, integrationID string, limit int) ([]*storage.IntegrationTaskLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.IntegrationTaskLog
	for i := len(s.taskLogs) - 1; i >= 0; i-- {
		e := s.taskLogs[i]
		if e.TenantID != tenantID || e.IntegrationID != integrationID {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// UsageStore implementation

func (s *Store) CreateUsageEvent(ctx context.Context, event *storage.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.CreatedAt = time.Now()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	cp := *event
	s.usage = append(s.usage, &cp)
	return nil
}

func (s *Store) CountUsageEvents(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.usage {
		if e.TenantID == tenantID && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// UsageEvents returns a snapshot of all recorded usage events.
// Test helper.
func (s *Store) UsageEvents() []*storage.UsageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*storage.UsageEvent, len(s.usage))
	copy(out, s.usage)
	return out
}

// TaskLogEntries returns a snapshot of all recorded task logs.
// Test helper.
func (s *Store) TaskLogEntries() []*storage.IntegrationTaskLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*storage.IntegrationTaskLog, len(s.taskLogs))
	copy(out, s.taskLogs)
	return out
}
