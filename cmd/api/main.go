package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/collectmall/collectmall-backend/api/controllers"
	"github.com/collectmall/collectmall-backend/api/routes"
	"github.com/collectmall/collectmall-backend/internal/chain"
	"github.com/collectmall/collectmall-backend/internal/goods"
	"github.com/collectmall/collectmall-backend/internal/inventory"
	"github.com/collectmall/collectmall-backend/internal/ordering"
	"github.com/collectmall/collectmall-backend/internal/users"
	"github.com/collectmall/collectmall-backend/pkg/config"
	"github.com/collectmall/collectmall-backend/pkg/db"
	"github.com/collectmall/collectmall-backend/pkg/logger"
	"github.com/collectmall/collectmall-backend/pkg/migrate"
	"github.com/collectmall/collectmall-backend/pkg/outbox"
	"github.com/collectmall/collectmall-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	gateway, err := chain.NewGateway(chain.NewRepository(dbClient.DB()), dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement gateway", err)
		os.Exit(1)
	}

	ordersRepo := ordering.NewRepository(dbClient.DB())
	orderingService, err := ordering.NewService(
		ordersRepo,
		users.NewRepository(dbClient.DB()),
		goods.NewRepository(dbClient.DB()),
		inventoryService,
		dbClient,
		outboxService,
		gateway,
		nil,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ordering service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			OrderingService: orderingService,
			OrdersRepo:      ordersRepo,
			Gateway:         gateway,
			Redis:           redisClient,
			Pingers: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
