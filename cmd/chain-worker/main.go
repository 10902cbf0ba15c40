package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/collectmall/collectmall-backend/internal/chain"
	"github.com/collectmall/collectmall-backend/internal/chain/listener"
	"github.com/collectmall/collectmall-backend/internal/inventory"
	invworker "github.com/collectmall/collectmall-backend/internal/inventory/worker"
	"github.com/collectmall/collectmall-backend/pkg/config"
	"github.com/collectmall/collectmall-backend/pkg/db"
	"github.com/collectmall/collectmall-backend/pkg/logger"
	"github.com/collectmall/collectmall-backend/pkg/migrate"
	"github.com/collectmall/collectmall-backend/pkg/outbox/idempotency"
	"github.com/collectmall/collectmall-backend/pkg/pubsub"
	"github.com/collectmall/collectmall-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "chain-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "chain-worker"

	logg = logger.New(logger.Options{
		ServiceName: "chain-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	resultService, err := chain.NewResultService(
		chain.NewRepository(dbClient.DB()),
		inventoryRepo,
		redisClient,
		dbClient,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create result service", err)
		os.Exit(1)
	}

	resultListener, err := listener.NewService(
		pubsubClient.ChainResultSubscription(),
		listener.HandlerFunc(resultService.Apply),
		manager,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create result listener", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventoryRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	inventoryWorker, err := invworker.NewService(
		pubsubClient.InventorySubscription(),
		inventoryService,
		dbClient,
		manager,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting chain worker")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- resultListener.Run(runCtx)
	}()
	go func() {
		errCh <- inventoryWorker.Run(runCtx)
	}()

	// First consumer to stop takes the process down with it.
	err = <-errCh
	cancel()
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "chain worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "chain worker shutting down gracefully")
}
