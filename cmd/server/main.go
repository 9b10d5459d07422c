package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/menas/internal/config"
	"github.com/JonMunkholm/menas/internal/core"
	_ "github.com/JonMunkholm/menas/internal/core/rules" // Register all rule types
	"github.com/JonMunkholm/menas/internal/eventbus"
	"github.com/JonMunkholm/menas/internal/logging"
	"github.com/JonMunkholm/menas/internal/metrics"
	"github.com/JonMunkholm/menas/internal/notify"
	"github.com/JonMunkholm/menas/internal/store"
	"github.com/JonMunkholm/menas/internal/web"
)

// backend is everything the console reads and writes.
type backend interface {
	web.Catalog
	core.DatasetStore
	core.MappingTableDAO
	core.SchemaDAO
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"notify", cfg.Notify.Driver,
		"require_api_key", cfg.Security.RequireAPIKey,
	)

	ctx := context.Background()

	db, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	slog.Info("rule types registered", "count", core.DefaultRegistry().Len())

	m := metrics.New(prometheus.DefaultRegisterer)

	// Event bus and its subscribers
	bus := eventbus.New(cfg.Notify.Buffer,
		eventbus.WithMaxAttempts(cfg.Notify.MaxAttempts),
		eventbus.WithLogger(logger),
	)
	hub := web.NewHub(logger, cfg.Security.WebSocketOrigins...)
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	bus.Subscribe("websocket", hub)

	fwd, err := notify.Open(ctx, notify.Config{
		Driver:       cfg.Notify.Driver,
		RedisURL:     cfg.Notify.RedisURL,
		KafkaBrokers: cfg.Notify.KafkaBrokers,
		Topic:        cfg.Notify.Topic,
	})
	if err != nil {
		slog.Error("failed to open notification forwarder", "driver", cfg.Notify.Driver, "error", err)
		os.Exit(1)
	}
	if fwd != nil {
		bus.Subscribe(fwd.Name(), fwd)
		defer fwd.Close()
		slog.Info("forwarding notifications", "driver", fwd.Name())
	}

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	bus.Start(jobCtx)

	editors := core.NewEditorManager(core.SessionDeps{
		Registry: core.DefaultRegistry(),
		Tables:   core.NewResolver(db, db),
		Store:    db,
		Notifier: eventbus.NewConformanceNotifier(bus),
		Recorder: m,
		Logger:   logger,
	}, cfg.Session.MaxAge, cfg.Session.IdleTimeout)
	m.RegisterActiveEditors(editors.Len)
	go editors.Run(jobCtx, cfg.Session.CleanupInterval)

	server := web.NewServer(cfg, web.Deps{
		Catalog:  db,
		Lists:    core.NewDatasetLists(db),
		Editors:  editors,
		Registry: core.DefaultRegistry(),
		Hub:      hub,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Stop background jobs after requests drained so commits still notify
		cancelJobs()
		bus.Stop()
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore opens the configured metadata store and loads the demo fixture
// when seeding is enabled.
func openStore(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	if !strings.EqualFold(cfg.Storage.Driver, config.StoragePostgres) {
		mem := store.NewMemory()
		if cfg.Storage.Seed {
			mem.Load(store.DemoFixture())
		}
		return mem, func() {}, nil
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	pg := store.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if cfg.Storage.Seed {
		if err := pg.Load(ctx, store.DemoFixture()); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return pg, pool.Close, nil
}
