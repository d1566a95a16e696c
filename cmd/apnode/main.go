// Command apnode runs the access point node: the HTTP API, the
// transmission pipeline, and the integration cron scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fourcornerlabs/go-peppol/internal/config"
	"github.com/fourcornerlabs/go-peppol/internal/dispatch"
	"github.com/fourcornerlabs/go-peppol/internal/server"
	"github.com/fourcornerlabs/go-peppol/internal/storage/mongodb"
	"github.com/fourcornerlabs/go-peppol/internal/transmit"
	"github.com/fourcornerlabs/go-peppol/pkg/discovery"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := mongodb.NewStore(ctx, &mongodb.Config{
		URI:      cfg.Storage.MongoDB.URI,
		Database: cfg.Storage.MongoDB.Database,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("connecting to storage: %w", err)
	}
	logger.Info("storage connected", "database", cfg.Storage.MongoDB.Database)

	verifier := discovery.NewService(discovery.ServiceConfig{
		Zone: cfg.Network.SMLZone,
		Resolver: discovery.ResolverConfig{
			DNSServer: cfg.Network.DNSServer,
			Timeout:   cfg.Network.DNSTimeout,
		},
		SMP: discovery.SMPClientConfig{
			HTTPClient: &http.Client{Timeout: cfg.Network.SMPTimeout},
		},
		Logger: logger.With("component", "discovery"),
	})

	integrations := dispatch.NewIntegrationClient(store, cfg.Dispatch.IntegrationTimeout,
		logger.With("component", "integrations"))
	webhooks := dispatch.NewWebhookNotifier(store, cfg.Dispatch.WebhookTimeout,
		logger.With("component", "webhooks"))
	dispatcher := dispatch.NewService(store, webhooks, integrations,
		logger.With("component", "dispatch"))

	transmitter := transmit.NewService(
		store,
		transmit.NewLiveTransport(transmit.LiveTransportConfig{
			GatewayURL: cfg.Transport.GatewayURL,
			APIKey:     cfg.Transport.APIKey,
			Timeout:    cfg.Transport.Timeout,
		}),
		transmit.NewSimulatedTransport(),
		nil, // validation collaborator is wired per deployment
		dispatcher,
		nil,
		logger.With("component", "transmit"),
	)

	scheduler := dispatch.NewScheduler(store, integrations, &dispatch.SchedulerConfig{
		ShortInterval:  cfg.Dispatch.CronShort,
		MediumInterval: cfg.Dispatch.CronMedium,
		LongInterval:   cfg.Dispatch.CronLong,
	}, logger.With("component", "scheduler"))
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	srv := server.New(store, verifier, transmitter, integrations, cfg.Server.BasePath, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	return store.Close(shutdownCtx)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
