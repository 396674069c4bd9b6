package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tallyengine "pollcast/contexts/live-polling/tally-engine"
	"pollcast/contexts/live-polling/tally-engine/adapters/memory"
	postgresadapter "pollcast/contexts/live-polling/tally-engine/adapters/postgres"
	redisadapter "pollcast/contexts/live-polling/tally-engine/adapters/redis"
	"pollcast/contexts/live-polling/tally-engine/adapters/system"
	wsadapter "pollcast/contexts/live-polling/tally-engine/adapters/websocket"
	"pollcast/contexts/live-polling/tally-engine/ports"
	"pollcast/internal/platform/config"
	"pollcast/internal/platform/db"
	"pollcast/internal/platform/httpserver"
	"pollcast/internal/platform/kv"
	"pollcast/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const shutdownTimeout = 10 * time.Second

type APIApp struct {
	server   *httpserver.Server
	tally    tallyengine.Module
	postgres *db.Postgres
	redis    *kv.Redis
	logger   *slog.Logger
}

// backend is the durable side of the tally store chosen by STORE_BACKEND.
type backend struct {
	repository ports.TallyRepository
	clock      ports.Clock
	idGen      ports.IDGenerator
	postgres   *db.Postgres
	redis      *kv.Redis
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := NewLogger(cfg, os.Stdout).With("service", cfg.ServiceName, "process", "api")
	slog.SetDefault(logger)

	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	module := tallyengine.NewModule(tallyengine.Dependencies{
		Repository:       store.repository,
		Clock:            store.clock,
		IDGen:            store.idGen,
		Metrics:          metrics.NewRecorder(registry),
		PersistTimeout:   cfg.PersistTimeout,
		LivenessInterval: cfg.LivenessInterval,
		Socket: wsadapter.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			SendBuffer:     cfg.SendBuffer,
			WriteTimeout:   cfg.WriteTimeout,
		},
		PollActive: cfg.PollActiveOnStart,
		Logger:     logger,
	})
	registry.MustRegister(metrics.NewTallyCollector(module.Tally))

	snapshot, err := module.Load(ctx)
	if err != nil {
		closeBackend(store, logger)
		return nil, err
	}
	logger.Info("tally restored",
		"event", "bootstrap_tally_restored",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"backend", cfg.StoreBackend,
		"total_votes", snapshot.TotalVotes,
		"poll_active", snapshot.Active,
	)

	server := httpserver.New(module, httpserver.Options{
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        metrics.Handler(registry),
	}, logger, normalizeAddr(cfg.HTTPPort))

	if strings.TrimSpace(cfg.AdminToken) == "" {
		logger.Warn("ADMIN_TOKEN is empty, control routes will reject every request",
			"event", "bootstrap_admin_disabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	return &APIApp{
		server:   server,
		tally:    module,
		postgres: store.postgres,
		redis:    store.redis,
		logger:   logger,
	}, nil
}

// Run serves HTTP and runs the liveness sweeper until ctx is cancelled or the
// listener fails, then shuts both down.
func (a *APIApp) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start()
	}()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		_ = a.tally.Sweeper.Run(runCtx)
	}()

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			err = fmt.Errorf("http server: %w", err)
		}
	}
	cancel()
	<-sweepDone

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil && !errors.Is(shutdownErr, context.DeadlineExceeded) {
		err = errors.Join(err, shutdownErr)
	}
	closed := a.tally.Shutdown()
	a.logger.Info("api app stopped",
		"event", "bootstrap_api_stopped",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sessions_closed", closed,
	)
	return err
}

func (a *APIApp) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := db.Connect(ctx, cfg.PostgresDSN, db.Options{})
		if err != nil {
			return backend{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return backend{}, err
		}
		return backend{
			repository: repo,
			clock:      system.SystemClock{},
			idGen:      system.UUIDGenerator{},
			postgres:   pg,
		}, nil
	case config.BackendRedis:
		client, err := kv.Connect(ctx, kv.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return backend{}, err
		}
		return backend{
			repository: redisadapter.NewRepository(redisadapter.NewClientAdapter(client.Client), cfg.RedisKeyPrefix, logger),
			clock:      system.SystemClock{},
			idGen:      system.UUIDGenerator{},
			redis:      client,
		}, nil
	case config.BackendMemory, "":
		store := memory.NewStore()
		return backend{repository: store, clock: store, idGen: store}, nil
	default:
		return backend{}, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func closeBackend(store backend, logger *slog.Logger) {
	app := APIApp{postgres: store.postgres, redis: store.redis}
	if err := app.Close(); err != nil {
		logger.Warn("backend close failed",
			"event", "bootstrap_backend_close_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8000"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
