package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/entregalo/entregalo-backend/api/routes"
	"github.com/entregalo/entregalo-backend/internal/backfill"
	"github.com/entregalo/entregalo-backend/internal/codes"
	"github.com/entregalo/entregalo-backend/internal/dispatch"
	"github.com/entregalo/entregalo-backend/internal/movements"
	"github.com/entregalo/entregalo-backend/internal/orders"
	"github.com/entregalo/entregalo-backend/internal/outcomes"
	"github.com/entregalo/entregalo-backend/internal/rates"
	"github.com/entregalo/entregalo-backend/internal/settlements"
	"github.com/entregalo/entregalo-backend/pkg/config"
	"github.com/entregalo/entregalo-backend/pkg/db"
	"github.com/entregalo/entregalo-backend/pkg/locks"
	"github.com/entregalo/entregalo-backend/pkg/logger"
	"github.com/entregalo/entregalo-backend/pkg/metrics"
	"github.com/entregalo/entregalo-backend/pkg/migrate"
	"github.com/entregalo/entregalo-backend/pkg/outbox"
	"github.com/entregalo/entregalo-backend/pkg/redis"
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

	var lockManager locks.Manager
	if strings.EqualFold(cfg.Locks.Backend, "redis") {
		lockManager = locks.NewRedisManager(redisClient, cfg.Locks.AcquireTimeout, cfg.Locks.TTL)
	} else {
		lockManager = locks.NewInProcManager(cfg.Locks.AcquireTimeout)
	}

	registry := prometheus.NewRegistry()
	reconciliationMetrics := metrics.NewReconciliationMetrics(registry)

	gormDB := dbClient.DB()
	codeGen := codes.NewGenerator(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	ratesService, err := rates.NewService(rates.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create rates service", err)
		os.Exit(1)
	}

	movementsService, err := movements.NewService(movements.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create movements service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(gormDB)
	dispatchRepo := dispatch.NewRepository(gormDB)

	dispatchService, err := dispatch.NewService(
		dispatchRepo,
		ordersRepo,
		ratesService,
		codeGen,
		dbClient,
		outboxService,
		cfg.Codes.SessionPrefix,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	outcomesService, err := outcomes.NewService(dispatchRepo, ordersRepo, movementsService, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create outcomes service", err)
		os.Exit(1)
	}

	settlementsService, err := settlements.NewService(settlements.ServiceParams{
		Repo:       settlements.NewRepository(gormDB),
		Dispatch:   dispatchRepo,
		Orders:     ordersRepo,
		Rates:      ratesService,
		Movements:  movementsService,
		CodeGen:    codeGen,
		Locks:      lockManager,
		Tx:         dbClient,
		Outbox:     outboxService,
		Metrics:    reconciliationMetrics,
		CodePrefix: cfg.Codes.SettlementPrefix,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlements service", err)
		os.Exit(1)
	}

	backfillService, err := backfill.NewService(
		movements.NewRepository(gormDB),
		ratesService,
		dbClient,
		outboxService,
		logg,
		reconciliationMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create backfill service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			dispatchService,
			outcomesService,
			settlementsService,
			movementsService,
			backfillService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
