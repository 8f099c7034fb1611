package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"

	"github.com/accesshub/accesshub-backend/internal/consumers/partnerstatus"
	"github.com/accesshub/accesshub-backend/pkg/config"
	"github.com/accesshub/accesshub-backend/pkg/db"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/accesshub/accesshub-backend/pkg/migrate"
	"github.com/accesshub/accesshub-backend/pkg/outbox"
	"github.com/accesshub/accesshub-backend/pkg/outbox/idempotency"
	"github.com/accesshub/accesshub-backend/pkg/pubsub"
	"github.com/accesshub/accesshub-backend/pkg/redis"
)

const processedTTL = 7 * 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "event-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "event-worker"

	logg = logger.New(logger.Options{
		ServiceName: "event-worker",
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
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, processedTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	consumer, err := partnerstatus.NewConsumer(dbClient.DB(), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create partner status consumer", err)
		os.Exit(1)
	}

	subscription := pubsubClient.RequestsSubscription()
	if subscription == nil {
		logg.Error(context.Background(), "requests subscription not configured", errors.New("nil subscriber"))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting event worker")

	err = subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if handleMessage(msgCtx, logg, consumer, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "event worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "event worker shutting down gracefully")
}

// handleMessage reports whether the message should be acked. Malformed
// messages are acked so they do not clog the subscription; transient
// processing failures are nacked for redelivery.
func handleMessage(ctx context.Context, logg *logger.Logger, consumer *partnerstatus.Consumer, msg *gcppubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		logg.Error(logCtx, "failed to decode event envelope", err)
		return true
	}

	if err := consumer.Process(logCtx, eventType, envelope); err != nil {
		logg.Error(logCtx, "failed to process event", err)
		return false
	}
	return true
}
