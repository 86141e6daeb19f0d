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

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/colisage/internal/config"
	"github.com/JonMunkholm/colisage/internal/core"
	"github.com/JonMunkholm/colisage/internal/logging"
	"github.com/JonMunkholm/colisage/internal/store/postgres"
	"github.com/JonMunkholm/colisage/internal/web"
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

	logging.Setup(nil, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
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

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		slog.Info("schema applied")
	}

	var aliases core.AliasTable
	if cfg.Import.AliasesFile != "" {
		aliases, err = core.LoadAliasFile(cfg.Import.AliasesFile)
		if err != nil {
			slog.Error("failed to load header aliases", "path", cfg.Import.AliasesFile, "error", err)
			os.Exit(1)
		}
		slog.Info("header aliases loaded", "path", cfg.Import.AliasesFile, "columns", len(aliases))
	}

	store := postgres.NewStore(pool)
	cache := web.NewListCache(cfg.Import.ListCacheTTL)

	service, err := core.NewService(core.ServiceConfig{
		Refs:              store,
		Store:             store,
		Tx:                postgres.NewTxManager(pool, cfg.Import.CommitMaxWait),
		Audit:             store,
		AuditLog:          store,
		Cache:             cache,
		Aliases:           aliases,
		CommitTimeout:     cfg.Import.CommitTimeout,
		MaxConcurrent:     cfg.Import.MaxConcurrent,
		MaxWait:           cfg.Import.MaxWaitTime,
		PreviewErrorLimit: cfg.Import.PreviewErrorLimit,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cache, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running commits finish so their transactions are not cut short.
		if status := service.ImportStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
