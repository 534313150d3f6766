// Command collabhub runs the collaborative document session hub: it
// loads configuration, opens the Postgres-backed DocumentStore and the
// optional Redis replica-fanout, constructs the Session Registry and
// Durability Writer, mounts the HTTP front door, and drives graceful
// shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sumanthd032/collabhub/internal/config"
	"github.com/sumanthd032/collabhub/internal/fanout"
	"github.com/sumanthd032/collabhub/internal/hub"
	"github.com/sumanthd032/collabhub/internal/observability"
	"github.com/sumanthd032/collabhub/internal/store/postgres"
	"github.com/sumanthd032/collabhub/internal/transport/httpapi"
)

func main() {
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("connected to postgres")

	var fan hub.ReplicaFanout = hub.NoopFanout{}
	var redisClient *fanout.Redis
	if cfg.RedisAddr != "" {
		redisClient = fanout.New(cfg.RedisAddr)
		if err := redisClient.Ping(ctx); err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		fan = redisClient
		log.Info("connected to redis replica fanout", "addr", cfg.RedisAddr)
		defer redisClient.Close()
	}

	sessionCfg := hub.SessionConfig{
		IdleGraceMillis:       cfg.IdleGraceMillis,
		OutboundQueueCapacity: cfg.OutboundQueueCapacity,
		MaxContentScalars:     cfg.MaxContentScalars,
		ChannelWriteTimeout:   time.Duration(cfg.ChannelWriteTimeoutMs) * time.Millisecond,
		TickInterval:          time.Duration(cfg.SessionTickIntervalMs) * time.Millisecond,
		StoreCallTimeout:      time.Duration(cfg.StoreCallTimeoutMs) * time.Millisecond,
	}

	durabilityCfg := hub.DurabilityConfig{
		CoalesceWindow:          time.Duration(cfg.WriteCoalesceMs) * time.Millisecond,
		StoreCallTimeout:        time.Duration(cfg.StoreCallTimeoutMs) * time.Millisecond,
		BackoffBase:             time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		BackoffCap:              time.Duration(cfg.BackoffCapMs) * time.Millisecond,
		CurrentRowHighWaterMark: cfg.CurrentRowHighWaterMark,
		HistoryHardCap:          cfg.HistoryHardCap,
	}

	writer := hub.NewDurabilityWriter(store, fan, durabilityCfg)
	registry := hub.NewRegistry(store, writer, hub.SystemClock{}, sessionCfg)

	srv := httpapi.NewServer(registry, store, sessionCfg)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	go func() {
		log.Info("collabhub listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownWorkerDeadlineMs)*time.Millisecond)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	registryCtx, cancelRegistry := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownWorkerDeadlineMs)*time.Millisecond)
	defer cancelRegistry()
	registry.Shutdown(registryCtx)

	// In-flight durability records get a separate, longer drain
	// deadline before process exit, per the shutdown sequence's
	// drain step.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownDrainMs)*time.Millisecond)
	defer cancelDrain()
	writer.Flush(drainCtx)

	if n := writer.DegradedDocumentCount(); n > 0 {
		log.Warn("exiting with degraded documents", "count", n)
	}
	log.Info("collabhub stopped")
}
