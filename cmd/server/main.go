package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agora/internal/agent"
	agentmetrics "agora/internal/agent/metrics"
	"agora/internal/chain"
	"agora/internal/events"
	"agora/internal/journal"
	"agora/internal/oracle"
	"agora/internal/pipeline"
	"agora/internal/pipeline/handler"
	pipelinemetrics "agora/internal/pipeline/metrics"
	"agora/internal/platform/config"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/logger"
	"agora/internal/platform/middleware"
	platformredis "agora/internal/platform/redis"
	"agora/internal/staking"
	"agora/internal/store"
	"agora/pkg/platform/httputil"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jrnl := journal.New(cfg.JournalCapacity)

	st, closeStore, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	setStore, closeRedis, err := newSetStore(cfg, log)
	if err != nil {
		log.Error("redis initialization failed", "error", err)
		os.Exit(1)
	}
	defer closeRedis()

	ledger := staking.NewLedger(staking.NewVirtualRegistrar(log), setStore, log)

	var orc oracle.Oracle
	if cfg.Oracle.APIKey != "" {
		orc = oracle.NewChatClient(cfg.Oracle)
		log.Info("oracle enabled", "model", cfg.Oracle.Model)
	} else {
		log.Info("oracle disabled, agents run on fallback rules")
	}
	evaluator := agent.NewEvaluator(orc, log,
		agent.WithMetrics(agentmetrics.New()),
		agent.WithTimeout(cfg.Oracle.Timeout),
	)

	publisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		log.Error("kafka initialization failed", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	svc := pipeline.New(st, evaluator, agent.DefaultRoster(), ledger, jrnl, log,
		pipeline.WithMetrics(pipelinemetrics.New()),
		pipeline.WithEvents(publisher),
	)

	if cfg.Watcher.FeedURL != "" {
		watcher := chain.NewWatcher(chain.NewHTTPFeed(cfg.Watcher.FeedURL), svc, cfg.Watcher.PollInterval, log)
		go watcher.Run(ctx)
	}

	router := newRouter(cfg, svc, jrnl, log)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func newRouter(cfg config.Server, svc *pipeline.Service, jrnl *journal.Journal, log *slog.Logger) http.Handler {
	h := handler.New(svc, jrnl, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(h.RegisterReads)
	r.Group(func(api chi.Router) {
		if cfg.JWTSigningKey != "" {
			api.Use(middleware.RequireAuth(cfg.JWTSigningKey, log))
		}
		h.RegisterWrites(api)
	})

	return r
}

func newStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store.Store, func(), error) {
	if cfg.PostgresURL == "" {
		log.Info("using in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}

	pg, err := store.NewPostgresStore(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	log.Info("using postgres store")
	return pg, pg.Close, nil
}

func newSetStore(cfg config.Server, log *slog.Logger) (staking.SetStore, func(), error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return staking.NewMemorySetStore(), func() {}, nil
	}
	log.Info("using redis registration store")
	return staking.NewRedisSetStore(client), func() { _ = client.Close() }, nil
}

func newPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return nil, err
	}
	log.Info("kafka event publisher enabled", "topic", cfg.KafkaTopic)
	return pub, nil
}
