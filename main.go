package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/bma-social/support-core/internal/core"
	"github.com/bma-social/support-core/internal/pipeline/classifier"
	"github.com/bma-social/support-core/internal/pipeline/consumer"
	"github.com/bma-social/support-core/internal/pipeline/conversations"
	"github.com/bma-social/support-core/internal/pipeline/events"
	"github.com/bma-social/support-core/internal/pipeline/executor"
	"github.com/bma-social/support-core/internal/pipeline/guard"
	"github.com/bma-social/support-core/internal/pipeline/messaging"
	"github.com/bma-social/support-core/internal/pipeline/model"
	"github.com/bma-social/support-core/internal/pipeline/responder"
	"github.com/bma-social/support-core/internal/pipeline/zonecontrol"
	logx "github.com/bma-social/support-core/pkg/logger"
	pkgredis "github.com/bma-social/support-core/pkg/redis"
)

// AppConfig defines all configurable parameters for the pipeline,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider; the generative reply path is disabled when unset.
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Limiter     model.LimiterConfig
	Executor    model.ExecutorConfig
	ReplyModel  model.ReplyModelConfig
	Consumer    model.ConsumerConfig
	DLQ         model.DLQConfig
	Session     model.SessionConfig
	ZoneControl model.ZoneControlConfig
	Messaging   model.MessagingConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	// The two breakers share a config shape, so each gets its own env
	// prefix.
	var zoneBreakerCfg, replyBreakerCfg model.BreakerConfig
	if err := envconfig.Process("ZONE_BREAKER", &zoneBreakerCfg); err != nil {
		log.Fatalf("Failed to process zone breaker config: %v", err)
	}
	if err := envconfig.Process("REPLY_BREAKER", &replyBreakerCfg); err != nil {
		log.Fatalf("Failed to process reply breaker config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis successfully")

	// ====================================================
	// Storage
	historyTTL := mustDuration("CONVERSATION_HISTORY_TTL", cfg.Session.HistoryTTL)
	sessionTTL := mustDuration("SESSION_TTL", cfg.Session.TTL)

	convRepo := conversations.NewRedisConversationRepository(rdb, historyTTL)
	sessions := conversations.NewRedisSessionRepository(rdb, sessionTTL)
	bus := events.NewRedisAlertBus(rdb)

	// ====================================================
	// Outbound services
	messenger := messaging.NewWebhookMessenger(
		cfg.Messaging.WhatsAppURL,
		cfg.Messaging.LineURL,
		mustDuration("MESSAGING_TIMEOUT", cfg.Messaging.Timeout),
	)
	zones := zonecontrol.NewClient(
		cfg.ZoneControl.BaseURL,
		cfg.ZoneControl.Token,
		mustDuration("ZONE_CONTROL_TIMEOUT", cfg.ZoneControl.Timeout),
	)

	// ====================================================
	// Pipeline stages
	zoneBreaker := guard.NewCircuitBreaker(
		"zone_control",
		zoneBreakerCfg.FailureThreshold,
		mustDuration("ZONE_BREAKER_RECOVERY_TIMEOUT", zoneBreakerCfg.RecoveryTimeout),
	)
	limiter := guard.NewTokenBucket(
		cfg.Limiter.Capacity,
		cfg.Limiter.RefillRate,
		mustDuration("LIMITER_MAX_WAIT", cfg.Limiter.MaxWait),
	)
	exec := executor.New(zones, zoneBreaker, limiter, executor.Config{
		MaxZonesPerMessage: cfg.Executor.MaxZonesPerMessage,
		MaxConcurrentCalls: cfg.Executor.MaxConcurrentCalls,
		CallTimeout:        mustDuration("EXECUTOR_CALL_TIMEOUT", cfg.Executor.CallTimeout),
		VolumeStep:         cfg.Executor.VolumeStep,
	})

	replyBreaker := guard.NewCircuitBreaker(
		"reply_model",
		replyBreakerCfg.FailureThreshold,
		mustDuration("REPLY_BREAKER_RECOVERY_TIMEOUT", replyBreakerCfg.RecoveryTimeout),
	)
	var chat responder.ChatModel
	if cfg.APIKey != "" {
		chatModel, err := responder.NewReplyModel(ctx, cfg.APIKey, cfg.BaseURL, cfg.ReplyModel)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise reply model")
		}
		chat = chatModel
	} else {
		logx.Warn().Msg("GEMINI_API_KEY not set, replies will use templates only")
	}
	replies := responder.New(chat, replyBreaker, mustDuration("REPLY_TIMEOUT", cfg.ReplyModel.Timeout))

	loader := conversations.NewLoader(convRepo, sessions, cfg.Session.RecentMessages)
	updater := conversations.NewUpdater(convRepo, sessions)
	escalator := conversations.NewEscalator(convRepo, bus, messenger)

	processor := consumer.NewProcessor(
		loader,
		classifier.New(),
		exec,
		replies,
		updater,
		escalator,
		messenger,
		bus,
	)

	// ====================================================
	// Queue consumer and dead letter reconciler
	queue := consumer.NewRedisQueue(rdb, cfg.Consumer.QueueKey)
	dedup := consumer.NewRedisDedupStore(rdb, mustDuration("CONSUMER_DEDUP_WINDOW", cfg.Consumer.DedupWindow))
	dlqStore := consumer.NewRedisDeadLetterStore(rdb)
	backoff := consumer.NewBackoff(
		mustDuration("CONSUMER_RETRY_INITIAL_DELAY", cfg.Consumer.InitialDelay),
		mustDuration("CONSUMER_RETRY_MAX_DELAY", cfg.Consumer.MaxDelay),
		cfg.Consumer.BackoffBase,
	)
	cons := consumer.New(queue, dedup, dlqStore, bus, processor, backoff, consumer.Config{
		PopTimeout:     mustDuration("CONSUMER_POP_TIMEOUT", cfg.Consumer.PopTimeout),
		ProcessTimeout: mustDuration("CONSUMER_PROCESS_TIMEOUT", cfg.Consumer.ProcessTimeout),
		MaxRetries:     cfg.Consumer.MaxRetries,
	})
	reconciler := consumer.NewReconciler(dlqStore, bus, consumer.ReconcilerConfig{
		Interval:    mustDuration("DLQ_RECONCILE_INTERVAL", cfg.DLQ.Interval),
		EscalateAge: mustDuration("DLQ_ESCALATE_AGE", cfg.DLQ.EscalateAge),
		ScanLimit:   cfg.DLQ.ScanLimit,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cons.Run(ctx) })
	g.Go(func() error { return reconciler.Run(ctx) })

	if err := g.Wait(); err != nil {
		logx.Fatal().Err(err).Msg("Pipeline exited with error")
	}
	logx.Info().Msg("Pipeline shut down cleanly")
}

func mustDuration(name, value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid %s '%s': %v", name, value, err)
	}
	return d
}
