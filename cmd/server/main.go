// main wires the compliance core: audit trail, consent ledger, event bus,
// lifecycle handlers, webhook dispatcher, DSR workflow and retention engine.
// Business logic lives in the internal packages; this file only assembles.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"peicollab/internal/audit"
	"peicollab/internal/consent"
	"peicollab/internal/dsr"
	"peicollab/internal/events"
	"peicollab/internal/lifecycle"
	"peicollab/internal/platform/config"
	"peicollab/internal/platform/httpserver"
	"peicollab/internal/platform/kafka"
	"peicollab/internal/platform/logger"
	"peicollab/internal/platform/metrics"
	"peicollab/internal/platform/middleware"
	platformredis "peicollab/internal/platform/redis"
	"peicollab/internal/privacy"
	"peicollab/internal/profile"
	"peicollab/internal/retention"
	httptransport "peicollab/internal/transport/http"
	"peicollab/internal/webhook"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping postgres", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("open pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	resolver := profile.NewPostgresResolver(db)

	// Audit trail, optionally mirrored to Kafka.
	trailOpts := []audit.TrailOption{
		audit.WithResolver(resolver),
		audit.WithCounters(m.Audit()),
	}
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		log.Error("connect kafka", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		trailOpts = append(trailOpts, audit.WithStream(
			audit.NewKafkaStream(producer, cfg.Kafka.AuditTopic, log)))
	}
	trail := audit.NewTrail(audit.NewPostgresStore(db), log, trailOpts...)

	dispatcher := webhook.NewDispatcher(
		webhook.NewPostgresStore(db),
		cfg.WebhookTimeout,
		log,
		webhook.WithCounters(m.Webhook()),
	)

	busOpts := []events.BusOption{
		events.WithResolver(resolver),
		events.WithWebhookSink(dispatcher),
		events.WithCounters(m.Bus()),
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var broadcaster *events.RedisBroadcaster
	if redisClient != nil {
		defer redisClient.Close()
		broadcaster = events.NewRedisBroadcaster(redisClient, cfg.Redis.BroadcastChannel, log)
		busOpts = append(busOpts, events.WithBroadcaster(broadcaster))
	}

	bus := events.NewBus(trail, log, busOpts...)

	if broadcaster != nil {
		go broadcaster.Listen(ctx, bus)
	}

	registry := lifecycle.NewRegistry(lifecycle.NewPostgresStore(db).Stores(), log)
	registry.Register(bus)

	ledger := consent.NewLedger(consent.NewPostgresStore(db), trail, log)

	privacyOps := privacy.NewPostgres(db)
	dsrService := dsr.NewService(
		dsr.NewPostgresStore(db),
		privacyOps, privacyOps,
		trail, log,
		dsr.WithCounters(m.DSR()),
	)

	ruleStore := retention.NewPostgresRuleStore(pool)
	engine := retention.NewEngine(
		ruleStore,
		retention.NewPostgresLogStore(pool),
		retention.NewPostgresEntityStore(pool),
		privacyOps, trail, log,
		retention.WithCounters(m.Retention()),
	)
	if cfg.RetentionInterval > 0 {
		scheduler := retention.NewScheduler(engine, ruleStore, cfg.RetentionInterval, log)
		go scheduler.Run(ctx)
	}

	handler := httptransport.NewHandler(bus, trail, ledger, dsrService, engine, dispatcher, log)
	validator := middleware.NewHS256Validator(cfg.JWTSigningKey)
	router := httptransport.NewRouter(handler, validator)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("compliance core listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
