package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"

	"caseflow/internal/access"
	"caseflow/internal/audit"
	auditmemory "caseflow/internal/audit/store/memory"
	auditpostgres "caseflow/internal/audit/store/postgres"
	httpapi "caseflow/internal/http"
	"caseflow/internal/notify"
	"caseflow/internal/platform/config"
	"caseflow/internal/platform/httpserver"
	"caseflow/internal/platform/logger"
	platformredis "caseflow/internal/platform/redis"
	priorityhandler "caseflow/internal/priority/handler"
	"caseflow/internal/sla"
	slahandler "caseflow/internal/sla/handler"
	slametrics "caseflow/internal/sla/metrics"
	"caseflow/internal/sla/store/escalation"
	"caseflow/internal/token"
	"caseflow/internal/workflow"
	workflowhandler "caseflow/internal/workflow/handler"
	workflowmetrics "caseflow/internal/workflow/metrics"
	"caseflow/internal/workflow/store/casestore"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	// Storage. Without a database URL the engine runs fully in memory, which
	// is enough for local development and demos.
	var (
		db          *sql.DB
		cases       workflow.CaseStore
		escalations sla.EscalationStore
		auditStore  audit.Store
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		cases = casestore.NewPostgres(db)
		escalations = escalation.NewPostgres(db)
		auditStore = auditpostgres.New(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		cases = casestore.NewMemory()
		escalations = escalation.NewMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var dispatcher notify.Dispatcher
	if cfg.WebhookURL != "" {
		dispatcher = notify.NewWebhookDispatcher(cfg.WebhookURL, 0)
	} else {
		dispatcher = notify.NewLoggingDispatcher(log)
	}

	auditPublisher := audit.NewPublisher(auditStore)
	evaluator := access.NewEvaluator(access.NewSnapshot(access.DefaultPolicy()))

	engine := workflow.NewService(cases, evaluator, workflow.DefaultTable(),
		workflow.WithLogger(log),
		workflow.WithAuditPublisher(auditPublisher),
		workflow.WithNotifier(dispatcher),
		workflow.WithMetrics(workflowmetrics.New()),
		workflow.WithStoreTimeout(cfg.StoreTimeout),
	)

	detectorOpts := []sla.DetectorOption{
		sla.WithLogger(log),
		sla.WithAuditPublisher(auditPublisher),
		sla.WithMetrics(slametrics.New()),
	}
	if redisClient != nil {
		detectorOpts = append(detectorOpts, sla.WithSweepLock(
			sla.NewRedisSweepLock(redisClient.Client, cfg.SweepLockTTL)))
	}
	detector := sla.NewDetector(engine, escalations, evaluator, detectorOpts...)

	tokens := token.NewService(cfg.JWTSigningKey, "caseflow")

	router := httpapi.NewRouter(httpapi.Deps{
		Workflow:    workflowhandler.New(engine, log),
		SLA:         slahandler.New(detector, log),
		Priority:    priorityhandler.New(log),
		Tokens:      tokens,
		SystemToken: cfg.SystemToken,
		Logger:      log,
	})

	// Background loops share one context so shutdown stops them together.
	bgCtx, cancelBG := context.WithCancel(context.Background())
	defer cancelBG()

	scheduler := sla.NewScheduler(detector, cfg.SweepInterval, log)
	go scheduler.Run(bgCtx)

	if db != nil && len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.DefaultProduceTopic(cfg.AuditTopic),
		)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()
		outbox := audit.NewOutboxPublisher(db, kafkaClient, log, 0)
		go func() {
			if err := outbox.Run(bgCtx); err != nil && bgCtx.Err() == nil {
				log.Error("audit outbox publisher stopped", "error", err)
			}
		}()
	}

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancelBG()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
