package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/brandpay-backend/internal/app"
	"github.com/angelmondragon/brandpay-backend/internal/cron"
	"github.com/angelmondragon/brandpay-backend/pkg/config"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/metrics"
	"github.com/angelmondragon/brandpay-backend/pkg/pubsub"
	"github.com/angelmondragon/brandpay-backend/pkg/redis"
)

const cycleLockName = "cron:cycle"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cycleLockName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		TargetLock: targetLock(redisClient, cfg.Cron.LockTTL),
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	// Sweeps fired by the worker's own jobs run in-process.
	trigger, err := cron.NewLocalTrigger(service, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create local trigger", err)
		os.Exit(1)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"targets":     strings.Join(registry.Targets(), ","),
	})

	var consumer *cron.Consumer
	if strings.TrimSpace(cfg.GCP.ProjectID) != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, true, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		consumer, err = cron.NewConsumer(pubsubClient.CronSubscription(), service, logg)
		if err != nil {
			logg.Error(ctx, "failed to create trigger consumer", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "gcp project not configured; running scheduled sweeps only")
	}

	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	if consumer != nil {
		group.Go(func() error { return consumer.Run(groupCtx) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func targetLock(client *redis.Client, ttl time.Duration) func(string) (cron.Lock, error) {
	return func(target string) (cron.Lock, error) {
		return cron.NewRedisLock(client, client.LockKey("cron:"+target), ttl)
	}
}
