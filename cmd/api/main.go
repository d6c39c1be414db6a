package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/brandpay-backend/api/routes"
	"github.com/angelmondragon/brandpay-backend/internal/app"
	"github.com/angelmondragon/brandpay-backend/internal/cron"
	"github.com/angelmondragon/brandpay-backend/internal/orders"
	"github.com/angelmondragon/brandpay-backend/pkg/config"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/metrics"
	"github.com/angelmondragon/brandpay-backend/pkg/pubsub"
	"github.com/angelmondragon/brandpay-backend/pkg/redis"
)

const (
	shutdownTimeout = 15 * time.Second
	cycleLockName   = "cron:cycle"
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

	registry := cron.NewRegistry()
	var trigger orders.Trigger
	if cfg.FeatureFlags.LocalCronTrigger {
		cycleLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cycleLockName), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		runner, err := cron.NewService(cron.ServiceParams{
			Logger:     logg,
			Registry:   registry,
			Lock:       cycleLock,
			TargetLock: targetLock(redisClient, cfg.Cron.LockTTL),
			Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create local cron runner", err)
			os.Exit(1)
		}
		local, err := cron.NewLocalTrigger(runner, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create local trigger", err)
			os.Exit(1)
		}
		trigger = local
	} else {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, false, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		published, err := cron.NewPubSubTrigger(pubsubClient.CronPublisher(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create pubsub trigger", err)
			os.Exit(1)
		}
		trigger = published
	}

	application, err := app.Build(context.Background(), app.Params{
		Config:   cfg,
		Logger:   logg,
		Redis:    redisClient,
		Registry: registry,
		Trigger:  trigger,
		Metrics:  prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(context.Background()); err != nil {
			logg.Error(context.Background(), "error closing document store", err)
		}
	}()

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
		"store":    cfg.Store.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			application.Store,
			redisClient,
			application.Orders,
			application.Payments,
			trigger,
			registry.Targets(),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-sigCtx.Done()
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

func targetLock(client *redis.Client, ttl time.Duration) func(string) (cron.Lock, error) {
	return func(target string) (cron.Lock, error) {
		return cron.NewRedisLock(client, client.LockKey("cron:"+target), ttl)
	}
}
