package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/natijti/internal/cache"
	"github.com/JonMunkholm/natijti/internal/config"
	"github.com/JonMunkholm/natijti/internal/core"
	"github.com/JonMunkholm/natijti/internal/logging"
	"github.com/JonMunkholm/natijti/internal/metrics"
	"github.com/JonMunkholm/natijti/internal/metrics/promexport"
	"github.com/JonMunkholm/natijti/internal/store"
	"github.com/JonMunkholm/natijti/internal/web"
)

// cacheSweepInterval is how often the in-process cache drops expired entries.
const cacheSweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	defer backend.Close()
	slog.Info("store ready", "driver", cfg.Database.Driver, "migrated", cfg.Database.Migrate)

	var (
		resultCache core.Cache
		memCache    *cache.Memory
	)
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rc.Close()
		resultCache = rc
		slog.Info("cache ready", "backend", "redis")
	} else {
		memCache = cache.NewMemory()
		resultCache = memCache
		slog.Info("cache ready", "backend", "memory")
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		prom, err := promexport.NewBackend()
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metrics.SetBackend(prom)
		metricsHandler = prom.Handler()
	}

	service := core.NewService(backend, resultCache, core.Options{
		BatchSize:        cfg.Upload.BatchSize,
		MaxTaskErrors:    cfg.Upload.MaxTaskErrors,
		MaxRetainedTasks: cfg.Upload.MaxRetainedTasks,
		MaxConcurrent:    cfg.Upload.MaxConcurrent,
		MaxWait:          cfg.Upload.MaxWaitTime,
		FileRules: core.FileRules{
			MaxSize:    cfg.Upload.MaxFileSize.Int64(),
			Extensions: cfg.Upload.AllowedExtensions,
		},
		ResultsTTL:      cfg.Cache.ResultsTTL,
		StatsTTL:        cfg.Cache.StatsTTL,
		DefaultPageSize: cfg.Results.DefaultPageSize,
		MaxPageSize:     cfg.Results.MaxPageSize,
	})

	server := web.NewServer(service, cfg, web.Options{
		Metrics: metricsHandler,
		Ping: func(ctx context.Context) error {
			return store.Ping(ctx, backend)
		},
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		service.RunTaskJanitor(gctx, cfg.Upload.JanitorInterval, cfg.Upload.TaskRetention)
		return nil
	})

	if memCache != nil {
		g.Go(func() error {
			memCache.RunSweeper(gctx, cacheSweepInterval)
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Running tasks hold a limiter slot until their final commit.
		if active := service.Limiter().Status().Active; active > 0 {
			slog.Info("waiting for ingestion tasks to complete", "active", active)
			if err := service.WaitForTasks(shutdownCtx); err != nil {
				slog.Warn("ingestion tasks did not complete in time", "error", err)
			} else {
				slog.Info("all ingestion tasks completed")
			}
		}
		return nil
	})

	return g.Wait()
}
