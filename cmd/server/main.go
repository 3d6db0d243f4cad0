package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"claimgate/internal/admin"
	"claimgate/internal/audit"
	audithandler "claimgate/internal/audit/handler"
	"claimgate/internal/budget"
	"claimgate/internal/enrich"
	"claimgate/internal/evaluate"
	evaluatehandler "claimgate/internal/evaluate/handler"
	"claimgate/internal/gateway"
	gatewaymetrics "claimgate/internal/gateway/metrics"
	gatewaystore "claimgate/internal/gateway/store"
	httpapi "claimgate/internal/http"
	"claimgate/internal/pipeline"
	pipelinemetrics "claimgate/internal/pipeline/metrics"
	"claimgate/internal/platform/config"
	"claimgate/internal/platform/httpserver"
	"claimgate/internal/platform/logger"
	platformmetrics "claimgate/internal/platform/metrics"
	platformredis "claimgate/internal/platform/redis"
	"claimgate/internal/policy"
	"claimgate/internal/rulepack"
	"claimgate/internal/transforms"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load(os.Getenv("CLAIMGATE_CONFIG"))
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Development())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Rule packs: release builds refuse unsigned or tampered packs.
	packs, err := rulepack.Load(cfg.RulePackDir, rulepack.LoadOptions{
		SkipVerification: cfg.Development(),
	})
	if err != nil {
		log.Error("rule pack load failed", "dir", cfg.RulePackDir, "error", err)
		os.Exit(1)
	}

	// Storage: postgres when configured, in-memory for development.
	var (
		store          audit.Store
		allowlistStore gatewaystore.AllowlistStore
		db             *sql.DB
	)
	if cfg.PostgresURL != "" {
		db, err = sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgStore := audit.NewPostgres(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("audit schema setup failed", "error", err)
			os.Exit(1)
		}
		store = pgStore

		pgAllowlist := gatewaystore.NewPostgres(db)
		if err := pgAllowlist.EnsureSchema(ctx); err != nil {
			log.Error("allowlist schema setup failed", "error", err)
			os.Exit(1)
		}
		allowlistStore = pgAllowlist
	} else {
		store = audit.NewMemoryStore()
		allowlistStore = gatewaystore.NewMemory(cfg.Enrich.Allowlist)
	}

	// Kafka mirror is optional; the store stays the system of record.
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := audit.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("audit publisher setup failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		store = audit.NewPublishingStore(store, publisher, log)
	}

	// Gateway allowlist: persisted list wins, config seeds a fresh install.
	hosts, err := allowlistStore.List(ctx)
	if err != nil {
		log.Error("allowlist load failed", "error", err)
		os.Exit(1)
	}
	if len(hosts) == 0 && len(cfg.Enrich.Allowlist) > 0 {
		hosts = cfg.Enrich.Allowlist
		if err := allowlistStore.Replace(ctx, hosts); err != nil {
			log.Error("allowlist seed failed", "error", err)
			os.Exit(1)
		}
	}

	gw := gateway.New(gateway.Config{
		Environment: cfg.Environment,
		Allowlist:   hosts,
	}, log, gatewaymetrics.New())

	// Enrichment cache: redis when configured, in-process otherwise.
	var cache enrich.Cache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = enrich.NewRedisCache(redisClient.Client)
	} else {
		cache = enrich.NewMemoryCache()
	}

	var recall transforms.RecallLookup
	var enrichClient *enrich.Client
	if cfg.Enrich.BaseURL != "" {
		enrichClient = enrich.NewClient(gw, cfg.Enrich.BaseURL, cache, cfg.Enrich.CacheTTL, log)
		recall = enrichClient
	}

	recorder := budget.NewRecorder(0)
	executor := pipeline.NewExecutor([]pipeline.Transform{
		transforms.NewAllergenDetector(packs),
		transforms.NewWeaselDetector(packs),
		transforms.NewPIIRedactor(transforms.PIIRedactorOptions{}),
		transforms.NewDisclaimerRewriter(packs),
		transforms.NewNutritionNormalizer(),
		transforms.NewRecallChecker(recall),
	}, log, pipelinemetrics.New(), recorder)

	policies, err := policy.NewLoader(cfg.PolicyPath, executor.Has, log)
	if err != nil {
		log.Error("policy load failed", "path", cfg.PolicyPath, "error", err)
		os.Exit(1)
	}

	// Routes already over budget on paper are worth knowing about at boot;
	// the release gate is where they become fatal.
	for _, failure := range budget.Check(policies.Current(), recorder.Snapshot()).Failures() {
		log.Warn("route over latency budget at load", "detail", failure.Summarize())
	}

	service := evaluate.New(executor, policies, store, log)

	router := httpapi.NewRouter(httpapi.Deps{
		Evaluate:       evaluatehandler.New(service, log),
		Audit:          audithandler.New(store, log),
		Admin:          admin.New(gw, allowlistStore, policies, log),
		AdminTokenHash: cfg.AdminTokenHash,
		Health: func() error {
			probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if db != nil {
				if err := db.PingContext(probeCtx); err != nil {
					return fmt.Errorf("postgres: %w", err)
				}
			}
			if redisClient != nil {
				if err := redisClient.Health(probeCtx); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			if enrichClient != nil {
				if err := enrichClient.Health(probeCtx); err != nil {
					return fmt.Errorf("enrichment: %w", err)
				}
			}
			return nil
		},
		Metrics: platformmetrics.New(),
		Logger:  log,
	})

	janitor := audit.NewJanitor(store, cfg.Retention(), log)
	go func() {
		if err := janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("retention janitor stopped", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting claimgate", "addr", cfg.Addr, "environment", cfg.Environment)
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
		os.Exit(1)
	}
	log.Info("claimgate stopped")
}
