// Package mongodb implements storage interfaces using MongoDB
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fourcornerlabs/go-peppol/internal/storage"
)

// Store implements storage.Store using MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	// Collections
	tenants      *mongo.Collection
	entities     *mongo.Collection
	documents    *mongo.Collection
	webhooks     *mongo.Collection
	integrations *mongo.Collection
	taskLogs     *mongo.Collection
	usage        *mongo.Collection
}

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	s := &Store{
		client:       client,
		db:           db,
		tenants:      db.Collection("tenants"),
		entities:     db.Collection("entities"),
		documents:    db.Collection("documents"),
		webhooks:     db.Collection("webhooks"),
		integrations: db.Collection("integrations"),
		taskLogs:     db.Collection("integration_task_logs"),
		usage:        db.Collection("usage_events"),
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.entities.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "address", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("creating entity indexes: %w", err)
	}

	_, err = s.documents.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "direction", Value: 1}}},
		{Keys: bson.D{{Key: "peppol_message_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating document indexes: %w", err)
	}

	_, err = s.webhooks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "entity_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating webhook indexes: %w", err)
	}

	_, err = s.taskLogs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "integration_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating task log indexes: %w", err)
	}

	_, err = s.usage.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating usage indexes: %w", err)
	}

	return nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	return err
}

// TenantStore implementation

func (s *Store) CreateTenant(ctx context.Context, tenant *storage.Tenant) error {
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}

	_, err := s.tenants.InsertOne(ctx, tenant)
	return err
}

func (s *Store) GetTenant(ctx context.Context, id string) (*storage.Tenant, error) {
	var tenant storage.Tenant
	err := s.tenants.FindOne(ctx, bson.M{"_id": id}).Decode(&tenant)
	if err != nil {
		return nil, notFound(err)
	}
	return &tenant, nil
}

func (s *Store) UpdateTenant(ctx context.Context, tenant *storage.Tenant) error {
	tenant.UpdatedAt = time.Now()
	_, err := s.tenants.ReplaceOne(ctx, bson.M{"_id": tenant.ID}, tenant)
	return err
}

func (s *Store) ListTenants(ctx context.Context) ([]*storage.Tenant, error) {
	cursor, err := s.tenants.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tenants []*storage.Tenant
	if err := cursor.All(ctx, &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}

// EntityStore implementation

func (s *Store) CreateEntity(ctx context.Context, entity *storage.BusinessEntity) error {
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = entity.CreatedAt
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}

	_, err := s.entities.InsertOne(ctx, entity)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("entity with address %s already exists", entity.Address)
	}
	return err
}

func (s *Store) GetEntity(ctx context.Context, tenantID, id string) (*storage.BusinessEntity, error) {
	var entity storage.BusinessEntity
	err := s.entities.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&entity)
	if err != nil {
		return nil, notFound(err)
	}
	return &entity, nil
}

func (s *Store) GetEntityByAddress(ctx context.Context, tenantID, address string) (*storage.BusinessEntity, error) {
	var entity storage.BusinessEntity
	err := s.entities.FindOne(ctx, bson.M{"tenant_id": tenantID, "address": address}).Decode(&entity)
	if err != nil {
		return nil, notFound(err)
	}
	return &entity, nil
}

func (s *Store) UpdateEntity(ctx context.Context, entity *storage.BusinessEntity) error {
	entity.UpdatedAt = time.Now()
	_, err := s.entities.ReplaceOne(ctx, bson.M{"_id": entity.ID, "tenant_id": entity.TenantID}, entity)
	return err
}

func (s *Store) DeleteEntity(ctx context.Context, tenantID, id string) error {
	_, err := s.entities.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	return err
}

func (s *Store) ListEntities(ctx context.Context, tenantID string) ([]*storage.BusinessEntity, error) {
	cursor, err := s.entities.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entities []*storage.BusinessEntity
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// DocumentStore implementation

func (s *Store) CreateDocument(ctx context.Context, doc *storage.TransmittedDocument) error {
	doc.CreatedAt = time.Now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	_, err := s.documents.InsertOne(ctx, doc)
	return err
}

func (s *Store) GetDocument(ctx context.Context, tenantID, id string) (*storage.TransmittedDocument, error) {
	var doc storage.TransmittedDocument
	err := s.documents.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

func (s *Store) MarkDocumentRead(ctx context.Context, tenantID, id string, read bool) error {
	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": id, "tenant_id": tenantID},
		bson.M{"$set": bson.M{"read": read}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, tenantID, id string) error {
	_, err := s.documents.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	return err
}

func documentQuery(tenantID string, filter *storage.DocumentFilter) bson.M {
	query := bson.M{"tenant_id": tenantID}
	if filter == nil {
		return query
	}
	if filter.EntityID != "" {
		query["entity_id"] = filter.EntityID
	}
	if filter.Direction != "" {
		query["direction"] = filter.Direction
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Unread {
		query["read"] = false
	}
	if filter.Since != nil {
		query["created_at"] = bson.M{"$gte": *filter.Since}
	}
	return query
}

func (s *Store) ListDocuments(ctx context.Context, tenantID string, filter *storage.DocumentFilter) ([]*storage.TransmittedDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			opts.SetLimit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			opts.SetSkip(int64(filter.Offset))
		}
	}

	cursor, err := s.documents.Find(ctx, documentQuery(tenantID, filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*storage.TransmittedDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) CountDocuments(ctx context.Context, tenantID string, filter *storage.DocumentFilter) (int64, error) {
	return s.documents.CountDocuments(ctx, documentQuery(tenantID, filter))
}

// WebhookStore implementation

func (s *Store) CreateWebhook(ctx context.Context, webhook *storage.Webhook) error {
	webhook.CreatedAt = time.Now()
	if webhook.ID == "" {
		webhook.ID = uuid.NewString()
	}

	_, err := s.webhooks.InsertOne(ctx, webhook)
	return err
}

func (s *Store) GetWebhook(ctx context.Context, tenantID, id string) (*storage.Webhook, error) {
	var webhook storage.Webhook
	err := s.webhooks.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&webhook)
	if err != nil {
		return nil, notFound(err)
	}
	return &webhook, nil
}

func (s *Store) DeleteWebhook(ctx context.Context, tenantID, id string) error {
	_, err := s.webhooks.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	return err
}

func (s *Store) ListWebhooksForEntity(ctx context.Context, tenantID, entityID string) ([]*storage.Webhook, error) {
	// Unscoped webhooks match every entity under the tenant
	query := bson.M{
		"tenant_id": tenantID,
		"$or": []bson.M{
			{"entity_id": entityID},
			{"entity_id": bson.M{"$in": []any{"", nil}}},
		},
	}

	cursor, err := s.webhooks.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var webhooks []*storage.Webhook
	if err := cursor.All(ctx, &webhooks); err != nil {
		return nil, err
	}
	return webhooks, nil
}

func (s *Store) ListWebhooks(ctx context.Context, tenantID string) ([]*storage.Webhook, error) {
	cursor, err := s.webhooks.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var webhooks []*storage.Webhook
	if err := cursor.All(ctx, &webhooks); err != nil {
		return nil, err
	}
	return webhooks, nil
}

// IntegrationStore implementation

func (s *Store) CreateIntegration(ctx context.Context, integration *storage.ActivatedIntegration) error {
	integration.CreatedAt = time.Now()
	integration.UpdatedAt = integration.CreatedAt
	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}

	_, err := s.integrations.InsertOne(ctx, integration)
	return err
}

func (s *Store) GetIntegration(ctx context.Context, tenantID, id string) (*storage.ActivatedIntegration, error) {
	var integration storage.ActivatedIntegration
	err := s.integrations.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&integration)
	if err != nil {
		return nil, notFound(err)
	}
	return &integration, nil
}

func (s *Store) UpdateIntegration(ctx context.Context, integration *storage.ActivatedIntegration) error {
	integration.UpdatedAt = time.Now()
	_, err := s.integrations.ReplaceOne(ctx,
		bson.M{"_id": integration.ID, "tenant_id": integration.TenantID}, integration)
	return err
}

func (s *Store) UpdateIntegrationState(ctx context.Context, tenantID, id string, state map[string]json.RawMessage) error {
	res, err := s.integrations.UpdateOne(ctx,
		bson.M{"_id": id, "tenant_id": tenantID},
		bson.M{"$set": bson.M{"state": state, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteIntegration(ctx context.Context, tenantID, id string) error {
	_, err := s.integrations.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	return err
}

func (s *Store) ListIntegrations(ctx context.Context, tenantID string) ([]*storage.ActivatedIntegration, error) {
	cursor, err := s.integrations.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var integrations []*storage.ActivatedIntegration
	if err := cursor.All(ctx, &integrations); err != nil {
		return nil, err
	}
	return integrations, nil
}

func (s *Store) ListAllIntegrations(ctx context.Context) ([]*storage.ActivatedIntegration, error) {
	cursor, err := s.integrations.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var integrations []*storage.ActivatedIntegration
	if err := cursor.All(ctx, &integrations); err != nil {
		return nil, err
	}
	return integrations, nil
}

// TaskLogStore implementation

func (s *Store) CreateTaskLog(ctx context.Context, entry *storage.IntegrationTaskLog) error {
	entry.CreatedAt = time.Now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := s.taskLogs.InsertOne(ctx, entry)
	return err
}

func (s *Store) ListTaskLogs(ctx context.Context, tenantID, integrationID string, limit int) ([]*storage.IntegrationTaskLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.taskLogs.Find(ctx,
		bson.M{"tenant_id": tenantID, "integration_id": integrationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*storage.IntegrationTaskLog
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UsageStore implementation

func (s *Store) CreateUsageEvent(ctx context.Context, event *storage.UsageEvent) error {
	event.CreatedAt = time.Now()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	_, err := s.usage.InsertOne(ctx, event)
	return err
}

func (s *Store) CountUsageEvents(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	return s.usage.CountDocuments(ctx, bson.M{
		"tenant_id":  tenantID,
		"created_at": bson.M{"$gte": since},
	})
}
