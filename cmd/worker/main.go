package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/labaccess-backend/internal/app"
	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/internal/trigger"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	"github.com/angelmondragon/labaccess-backend/pkg/instance"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
	"github.com/angelmondragon/labaccess-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	a, err := app.Build(ctx, cfg, logg)
	requireResource(ctx, logg, "pipeline", err)
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(ctx, "error closing dependencies", err)
		}
	}()

	params := ServiceParams{
		Logger:       logg,
		Dependencies: []dependency{{name: "database", ping: a.DB.Ping}},
	}
	if a.Redis != nil {
		params.Dependencies = append(params.Dependencies, dependency{name: "redis", ping: a.Redis.Ping})
	}

	if cfg.PubSub.SubmissionSubscription != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(ctx, "failed to close pubsub client", err)
			}
		}()

		subscription := pubsubClient.SubmissionSubscription()
		if subscription == nil {
			requireResource(ctx, logg, "submission subscription", errors.New("subscription not configured"))
		}
		consumer, err := trigger.NewConsumer(subscription, a.Trigger, logg)
		requireResource(ctx, logg, "submission consumer", err)
		params.Consumer = consumer
		params.Dependencies = append(params.Dependencies, dependency{name: "pubsub", ping: pubsubClient.Ping})
	}

	if cfg.Pipeline.PollEnabled {
		pollerParams := pipeline.PollerParams{
			Logger:   logg,
			Pipeline: a.Pipeline,
			Sheets:   a.Sheets,
			Interval: cfg.Pipeline.PollEvery,
		}
		if a.Dedupe != nil {
			pollerParams.Dedupe = a.Dedupe
		}
		poller, err := pipeline.NewPoller(pollerParams)
		requireResource(ctx, logg, "sheet poller", err)
		params.Poller = poller
	}

	service, err := NewService(params)
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"consumer":    params.Consumer != nil,
		"poller":      params.Poller != nil,
	})
	logg.Info(runCtx, "worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker failed", err)
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
