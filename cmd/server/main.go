package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/ledgerimport/internal/config"
	"github.com/JonMunkholm/ledgerimport/internal/core"
	_ "github.com/JonMunkholm/ledgerimport/internal/core/kinds" // Register all kinds
	"github.com/JonMunkholm/ledgerimport/internal/ingest"
	"github.com/JonMunkholm/ledgerimport/internal/logging"
	"github.com/JonMunkholm/ledgerimport/internal/store"
	"github.com/JonMunkholm/ledgerimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	// Database is optional: without it presets and run history are off.
	var pool *pgxpool.Pool
	if cfg.HasDatabase() {
		pool, err = store.Connect(ctx, store.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Database.Migrate {
			if err := store.Migrate(ctx, pool); err != nil {
				slog.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
	} else {
		slog.Warn("DATABASE_URL not set: mapping presets and run history are disabled")
	}

	var db ingest.TxBeginner
	if pool != nil {
		db = pool
	}
	submitter, err := ingest.FromConfig(cfg.Ingest, db)
	if err != nil {
		slog.Error("failed to configure ingestion", "error", err)
		os.Exit(1)
	}

	var opts []core.Option
	if pool != nil {
		st := store.New(pool)
		opts = append(opts, core.WithPresetStore(st), core.WithRunRecorder(st))
	}
	service := core.NewService(submitter, cfg.ServiceConfig(), opts...)

	kinds := make([]string, 0, core.KindCount())
	for _, k := range core.Kinds() {
		kinds = append(kinds, string(k))
	}
	slog.Info("import kinds registered", "count", len(kinds), "kinds", kinds)

	var serverOpts []web.Option
	if pool != nil {
		serverOpts = append(serverOpts, web.WithPinger(pool))
	}
	server := web.NewServer(service, cfg, serverOpts...)

	// Background jobs stop with the server.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSessionReaper(jobCtx, cfg.Sessions.ReapInterval)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting new requests first, then let running imports drain.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if active := service.ActiveImports(); active > 0 {
			slog.Info("waiting for imports to complete", "active", active)
			if service.WaitForImports(cfg.Server.ShutdownTimeout) {
				slog.Info("all imports completed")
			} else {
				slog.Warn("imports did not complete in time", "active", service.ActiveImports())
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-stopped
}
