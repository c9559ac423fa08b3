// pricefeed-server generates simulated prices and serves them over REST
// and WebSocket.
// Usage: go run ./cmd/pricefeed-server --config configs/pricefeed.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pricefeed/internal/config"
	"github.com/rickgao/pricefeed/internal/database"
	"github.com/rickgao/pricefeed/internal/feed"
	"github.com/rickgao/pricefeed/internal/server"
	"github.com/rickgao/pricefeed/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ver, commit, built := version.Info()
	logger.Info("starting pricefeed-server",
		"version", ver,
		"commit", commit,
		"built", built,
		"storage", cfg.Storage.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	hub := server.NewHub(cfg.Server.SendBuffer, logger)

	gen := feed.NewGenerator(feed.Config{
		TickerCount:       cfg.Feed.TickerCount,
		UpdateInterval:    cfg.Feed.UpdateInterval,
		PriceChangeRange:  cfg.Feed.PriceChangeRange,
		InitialPriceMin:   cfg.Feed.InitialPriceMin,
		InitialPriceMax:   cfg.Feed.InitialPriceMax,
		ConsecutiveErrors: cfg.Feed.ConsecutiveErrors,
		MaxHistory:        cfg.Feed.MaxHistorySize,
	}, repo, hub, logger)

	if err := gen.Start(ctx); err != nil {
		return fmt.Errorf("start generator: %w", err)
	}

	srv := server.New(server.Config{
		APIPrefix:    cfg.Server.APIPrefix,
		CORSOrigins:  cfg.Server.CORSOrigins,
		WriteTimeout: cfg.Server.WriteTimeout,
		SendBuffer:   cfg.Server.SendBuffer,
	}, feed.NewService(gen, repo), hub, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr, "api_prefix", cfg.Server.APIPrefix)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := gen.Stop(shutdownCtx); err != nil {
			logger.Warn("generator stop", "error", err)
		}
		hub.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		stats := gen.Stats()
		logger.Info("final stats",
			"ticks", stats.Ticks,
			"published", stats.Published,
			"store_errors", stats.StoreErrors,
			"pruned", stats.Pruned,
		)
		return nil
	})

	return g.Wait()
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (feed.Repository, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db := cfg.Storage.Postgres
		logger.Info("connecting to database", "host", db.Host, "port", db.Port, "database", db.Name)

		pool, err := database.Connect(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected")
		return feed.NewPostgresRepository(pool, logger), pool.Close, nil
	default:
		return feed.NewMemoryRepository(cfg.Feed.MaxHistorySize), func() {}, nil
	}
}
