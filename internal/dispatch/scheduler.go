package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fourcornerlabs/go-peppol/internal/storage"
)

// Cron event names, one per dispatch interval.
const (
	EventCronShort  = "cron.short"
	EventCronMedium = "cron.medium"
	EventCronLong   = "cron.long"
)

// SchedulerConfig holds the three dispatch intervals.
type SchedulerConfig struct {
	ShortInterval  time.Duration
	MediumInterval time.Duration
	LongInterval   time.Duration
}

// DefaultSchedulerConfig returns the standard intervals.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		ShortInterval:  5 * time.Minute,
		MediumInterval: 6 * time.Hour,
		LongInterval:   24 * time.Hour,
	}
}

// schedulerStore is the storage surface the scheduler needs.
type schedulerStore interface {
	storage.TenantStore
	storage.IntegrationStore
}

// Scheduler raises periodic cron events towards every activated
// integration. Each sweep iterates the integrations sequentially; a
// plan-entitlement check gates each one, and one integration's failure
// is logged without aborting the rest of the sweep.
type Scheduler struct {
	store  schedulerStore
	client *IntegrationClient
	cfg    *SchedulerConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a cron dispatch scheduler.
func NewScheduler(store schedulerStore, client *IntegrationClient, cfg *SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins background cron dispatch.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
	s.logger.Info("integration scheduler started",
		"short_interval", s.cfg.ShortInterval,
		"medium_interval", s.cfg.MediumInterval,
		"long_interval", s.cfg.LongInterval)
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("integration scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	short := time.NewTicker(s.cfg.ShortInterval)
	medium := time.NewTicker(s.cfg.MediumInterval)
	long := time.NewTicker(s.cfg.LongInterval)
	defer short.Stop()
	defer medium.Stop()
	defer long.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-short.C:
			s.Sweep(s.ctx, EventCronShort)
		case <-medium.C:
			s.Sweep(s.ctx, EventCronMedium)
		case <-long.C:
			s.Sweep(s.ctx, EventCronLong)
		}
	}
}

// Sweep dispatches one cron event to every eligible integration.
func (s *Scheduler) Sweep(ctx context.Context, event string) {
	integrations, err := s.store.ListAllIntegrations(ctx)
	if err != nil {
		s.logger.Error("failed to list integrations", "event", event, "error", err)
		return
	}

	// Tenants repeat across integrations; resolve each plan once
	plans := make(map[string]storage.Plan)

	for _, integration := range integrations {
		plan, ok := plans[integration.TenantID]
		if !ok {
			tenant, err := s.store.GetTenant(ctx, integration.TenantID)
			if err != nil {
				s.logger.Error("failed to load tenant for integration",
					"tenant", integration.TenantID,
					"integration", integration.ID,
					"error", err)
				continue
			}
			plan = tenant.Plan
			plans[integration.TenantID] = plan
		}

		if !plan.AllowsIntegrations() {
			continue
		}

		if err := s.client.PostEvent(ctx, integration, event, nil); err != nil {
			s.logger.Warn("cron dispatch failed",
				"integration", integration.ID,
				"event", event,
				"error", err)
		}
	}
}
