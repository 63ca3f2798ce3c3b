package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/seqdex/internal/config"
	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/seqdex/internal/db/redis"
	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/seqdex/internal/logger"
	"github.com/kailas-cloud/seqdex/internal/metrics"
	eventrepo "github.com/kailas-cloud/seqdex/internal/repository/event"
	indexrepo "github.com/kailas-cloud/seqdex/internal/repository/index"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
	searchrepo "github.com/kailas-cloud/seqdex/internal/repository/search"
	chiTransport "github.com/kailas-cloud/seqdex/internal/transport/chi"
	eventuc "github.com/kailas-cloud/seqdex/internal/usecase/event"
	healthuc "github.com/kailas-cloud/seqdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/seqdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/seqdex/internal/usecase/search"
	"github.com/kailas-cloud/seqdex/internal/version"
)

const (
	limiterCleanupInterval = time.Minute
	limiterStaleAfter      = 10 * time.Minute
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  "Run the HTTP API server. Configuration is read from config/<ENV>.yaml or CONFIG_PATH.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, _ := cmd.Flags().GetString("env")
			if env == "" {
				env = config.GetEnv()
			}
			return serve(env)
		},
	}
	cmd.Flags().String("env", "", "environment name (default: ENV or local)")
	return cmd
}

func serve(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(logpkg.Options{
		Env:     env,
		Level:   cfg.Logging.Level,
		Service: "seqdex",
		Version: version.Version,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting seqdex API server",
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := newStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	keys := keyspace.New(cfg.Storage.KeyPrefix)
	indices := indexrepo.New(store, keys, indexrepo.CacheConfig{
		Size: cfg.SchemaCache.Size,
		TTL:  cfg.SchemaCache.TTL(),
	})
	events := eventrepo.New(store, keys)

	server := chiTransport.NewServer(
		indexuc.New(indices),
		eventuc.New(events, indices, cfg.Search.TimestampField).WithMaxBatchSize(cfg.Ingest.MaxBatchSize),
		searchuc.New(searchrepo.New(store, keys), indices, logger),
		healthuc.New(store, indices),
		logger,
		chiTransport.WithSearchDefaults(request.Defaults{
			TimestampField:       cfg.Search.TimestampField,
			EventCategoryField:   cfg.Search.EventCategoryField,
			ImplicitJoinKeyField: cfg.Search.ImplicitJoinKeyField,
			FetchSize:            cfg.Search.DefaultSize,
			MaxFetchSize:         cfg.Search.MaxSize,
		}),
		chiTransport.WithSearchTimeout(cfg.Search.Timeout()),
	)

	var wg sync.WaitGroup
	routerCfg := chiTransport.RouterConfig{APIKeys: cfg.Auth.APIKeys}
	if cfg.RateLimit.RPS > 0 {
		routerCfg.Limiter = chiTransport.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		routerCfg.Limiter.StartCleanup(ctx, &wg, limiterCleanupInterval, limiterStaleAfter)
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, routerCfg, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	wg.Wait()

	logger.Info("Server stopped gracefully")
	return nil
}

func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Addrs,
			Username:    cfg.Username,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
