package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grc-platform/internal/ai"
	"grc-platform/internal/audit"
	"grc-platform/internal/auth"
	"grc-platform/internal/config"
	"grc-platform/internal/httpapi"
	"grc-platform/internal/records"
	"grc-platform/internal/reporting"
	"grc-platform/internal/risk"
	"grc-platform/pkg/logger"
	"grc-platform/pkg/metrics"
	"grc-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)
	rootCtx = logger.With(rootCtx, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	if cfg.App.MigrateOnStart {
		if err := utils.MigrateUp(cfg.App.MigrationsSource, cfg.PostgresURL()); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		log.Info("migrations applied", "source", cfg.App.MigrationsSource)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Audit: inserts go to Postgres, then Redis pub/sub; every instance's relay
	// feeds its local hub, which the websocket stream subscribes to.
	auditRepo := audit.NewPostgresRepo(db)
	hub := audit.NewHub(0)
	auditOpts := []audit.Option{
		audit.WithHub(hub),
		audit.WithLimits(cfg.Audit.DefaultLimit, cfg.Audit.MaxLimit),
		audit.WithPublisher("redis", audit.NewRedisBroadcaster(rdb, cfg.Audit.Channel)),
	}
	var exporter *audit.KafkaExporter
	if len(cfg.Kafka.Brokers) > 0 {
		exporter = audit.NewKafkaExporter(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		auditOpts = append(auditOpts, audit.WithPublisher("kafka", exporter))
	}
	auditSvc := audit.NewService(auditRepo, auditOpts...)
	recorder := audit.NewRecorder(auditSvc)

	relay := audit.NewRelay(rdb, cfg.Audit.Channel, hub, auditRepo)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit relay stopped", "err", err)
		}
	}()

	riskSvc := risk.NewService(risk.NewPostgresRepo(db), recorder)
	recordSvc := records.NewService(records.NewPostgresRepo(db), recorder)

	var completer ai.Completer
	if cfg.AIEnabled() {
		completer = ai.NewGatewayClient(cfg.AI.GatewayURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	} else {
		log.Warn("AI gateway key not set; AI endpoints will return 503")
	}
	aiSvc := ai.NewService(completer, ai.NewPostgresRepo(db), recordSvc, riskSvc, recorder,
		ai.WithLimiter(ai.NewRedisLimiter(rdb, cfg.AI.MaxConcurrent, cfg.AI.Timeout+10*time.Second)))

	h := httpapi.Handlers{
		Risks:          riskSvc,
		Records:        recordSvc,
		Audit:          auditSvc,
		AI:             aiSvc,
		Reports:        reporting.NewService(reporting.NewPostgresRepo(db)),
		AllowedOrigins: cfg.App.AllowedOrigins,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	registerRoutes(r, h, authManager, readiness{
		"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// AI generation can legitimately take most of the gateway timeout.
		WriteTimeout: cfg.AI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "ai_enabled", cfg.AIEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// Closing the hub ends every open stream before the server waits on them.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		log.Warn("audit relay did not stop in time")
	}
	if exporter != nil {
		if err := exporter.Close(); err != nil {
			log.Warn("kafka exporter close failed", "err", err)
		}
	}
}
