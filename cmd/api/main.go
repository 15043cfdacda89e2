package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talentloop/talentloop-backend/api/routes"
	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	"github.com/talentloop/talentloop-backend/internal/notifications"
	"github.com/talentloop/talentloop-backend/internal/reclaimer"
	"github.com/talentloop/talentloop-backend/pkg/config"
	"github.com/talentloop/talentloop-backend/pkg/db"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	"github.com/talentloop/talentloop-backend/pkg/metrics"
	"github.com/talentloop/talentloop-backend/pkg/migrate"
	"github.com/talentloop/talentloop-backend/pkg/outbox"
	"github.com/talentloop/talentloop-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
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

	creditMetrics := metrics.NewCreditMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	creditsService, err := credits.NewService(credits.ServiceParams{
		Repository:          credits.NewRepository(dbClient.DB()),
		TxRunner:            dbClient,
		Notifier:            notificationsService,
		Outbox:              outboxService,
		Metrics:             creditMetrics,
		Logger:              logg,
		LowBalanceThreshold: cfg.Credits.LowBalanceThreshold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credits service", err)
		os.Exit(1)
	}

	invitationsRepo := invitations.NewRepository(dbClient.DB())
	invitationsService, err := invitations.NewService(invitations.ServiceParams{
		Repository: invitationsRepo,
		TxRunner:   dbClient,
		Credits:    creditsService,
		Notifier:   notificationsService,
		Outbox:     outboxService,
		Logger:     logg,
		Config:     cfg.Credits,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitations service", err)
		os.Exit(1)
	}

	reclaim, err := reclaimer.New(reclaimer.Params{
		Invitations: invitationsRepo,
		TxRunner:    dbClient,
		Credits:     creditsService,
		Notifier:    notificationsService,
		Outbox:      outboxService,
		Metrics:     creditMetrics,
		Logger:      logg,
		BatchSize:   cfg.Reclaim.BatchSize,
		Concurrency: cfg.Reclaim.Concurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reclaimer", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("HOSTNAME")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		creditsService,
		invitationsService,
		notificationsService,
		reclaim,
	))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down")
}
