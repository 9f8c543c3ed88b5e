package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"milk-delivery/internal/config"
	"milk-delivery/internal/db"
	"milk-delivery/internal/httpserver"
	"milk-delivery/internal/logger"
	"milk-delivery/internal/metrics"
	"milk-delivery/internal/postgrest"
	agentrepo "milk-delivery/internal/repository/agent"
	assignmentrepo "milk-delivery/internal/repository/assignment"
	customerrepo "milk-delivery/internal/repository/customer"
	sessionrepo "milk-delivery/internal/repository/session"
	"milk-delivery/internal/service/delivery"
	"milk-delivery/internal/service/session"
)

// backend is the remote table store selected by configuration.
type backend struct {
	customers   customerrepo.Repository
	agents      agentrepo.Repository
	assignments assignmentrepo.Repository
	pool        *pgxpool.Pool
}

func (b *backend) remote() *delivery.Remote {
	if b == nil {
		return nil
	}
	return &delivery.Remote{Customers: b.customers, Agents: b.agents, Assignments: b.assignments}
}

func openBackend(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*backend, error) {
	if !cfg.StoreConfigured() {
		return nil, nil
	}
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		return &backend{
			customers:   customerrepo.NewPostgres(pool, log),
			agents:      agentrepo.NewPostgres(pool, log),
			assignments: assignmentrepo.NewPostgres(pool, log),
			pool:        pool,
		}, nil
	default:
		client, err := postgrest.New(cfg.Store.URL, cfg.Store.AnonKey, cfg.Store.Timeout, log)
		if err != nil {
			return nil, err
		}
		return &backend{
			customers:   customerrepo.NewREST(client, log),
			agents:      agentrepo.NewREST(client, log),
			assignments: assignmentrepo.NewREST(client, log),
		}, nil
	}
}

// openRedis connects to MILK_REDIS_URL, or starts an in-process server when
// it is unset so local runs need no external services.
func openRedis(ctx context.Context, cfg config.RedisConfig, log *zap.SugaredLogger) (*redis.Client, func(), error) {
	if cfg.URL != "" {
		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	log.Warnw("MILK_REDIS_URL not set, sessions are kept in memory", "addr", mr.Addr())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx := context.Background()
	be, err := openBackend(ctx, cfg, logg)
	if err != nil {
		logg.Fatalw("open store backend", "backend", cfg.Store.Backend, "error", err)
	}
	if be == nil {
		logg.Warnw("store not configured, running in demo mode", "backend", cfg.Store.Backend)
	} else if be.pool != nil {
		defer be.pool.Close()
	}

	rdb, closeRedis, err := openRedis(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Fatalw("connect redis", "error", err)
	}
	defer closeRedis()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := delivery.NewRegistry(be.remote(), logg, metrics.NewDelivery(reg))

	authOpts := session.Options{
		Sessions:  sessionrepo.NewRedis(rdb),
		JWTSecret: cfg.Store.JWTSecret,
		TTL:       cfg.Session.TTL,
		Logger:    logg,
	}
	if be != nil {
		authOpts.Customers = be.customers
		authOpts.Agents = be.agents
	}

	checks := map[string]func(context.Context) error{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	if be != nil && be.pool != nil {
		checks["db"] = be.pool.Ping
	}

	srv := httpserver.New(cfg.HTTPAddr, logg, httpserver.Deps{
		Stores:      registry,
		Auth:        session.New(authOpts),
		ReadyChecks: checks,
		Metrics:     metrics.NewHTTP(reg),
		MetricsPage: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		CORSOrigins: cfg.CORSOrigins,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logg.Infow("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		logg.Errorw("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Errorw("graceful shutdown failed", "error", err)
	} else {
		logg.Info("server stopped")
	}
}
