package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/hostlane/qms-backend/internal/consumers/billing"
	"github.com/hostlane/qms-backend/internal/subscriptions"
	"github.com/hostlane/qms-backend/pkg/config"
	"github.com/hostlane/qms-backend/pkg/db"
	"github.com/hostlane/qms-backend/pkg/logger"
	"github.com/hostlane/qms-backend/pkg/migrate"
	"github.com/hostlane/qms-backend/pkg/pubsub"
	"github.com/hostlane/qms-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "billing-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "billing-worker"

	logg = logger.New(logger.Options{
		ServiceName: "billing-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database client", err)
		}
	}()

	err = migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.BillingSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "billing subscription", errors.New("subscription not configured"))
	}

	repo := subscriptions.NewRepository(dbClient.DB())
	applier, err := subscriptions.NewApplier(repo, logg)
	requireResource(ctx, logg, "transition applier", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:           repo,
		Applier:        applier,
		Logger:         logg,
		SweepBatchSize: cfg.Sweep.BatchSize,
	})
	requireResource(ctx, logg, "subscription service", err)

	consumer, err := billing.NewConsumer(billing.ConsumerParams{
		Subscription:  subscription,
		Subscriptions: subscriptionService,
		Dedupe:        redisClient,
		Logger:        logg,
	})
	requireResource(ctx, logg, "billing consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "billing worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "billing worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
