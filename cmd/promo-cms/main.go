package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/avelichko/promo-cms/pkg/api"
	"github.com/avelichko/promo-cms/pkg/config"
	"github.com/avelichko/promo-cms/pkg/middleware"
	"github.com/avelichko/promo-cms/pkg/observability"
	"github.com/avelichko/promo-cms/pkg/storage"
	"github.com/avelichko/promo-cms/pkg/storage/gormstore"
	"github.com/avelichko/promo-cms/pkg/storage/postgres"
	"github.com/avelichko/promo-cms/pkg/uploads"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)

	store, err := openStore(cfg)
	if err != nil {
		logger.WithError(err).Errorf("failed to initialize %s storage", cfg.Storage.Type)
		os.Exit(1)
	}
	logger.WithField("type", cfg.Storage.Type).Info("storage initialized")

	sink, err := uploads.NewSink(cfg.Uploads.Dir)
	if err != nil {
		logger.WithError(err).Error("failed to initialize uploads directory")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	rateLimitCfg.Skip = func(r *http.Request) bool {
		return r.URL.Path == "/api/health" || r.URL.Path == "/api/ready"
	}

	server := api.NewServer(store, sink, api.ServerConfig{
		AdminLogin:    cfg.Admin.Login,
		AdminPassword: cfg.Admin.Password,
		Production:    cfg.Production,
		PublicBaseURL: cfg.PublicBaseURL,
		Version:       cfg.Version,
		StorageName:   cfg.Storage.Type,
	},
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithRateLimiter(middleware.NewRateLimiter(rateLimitCfg, metrics)),
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return store.Close()
	})

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		os.Exit(1)
	}
}

// openStore builds the configured backend and runs its migrations.
func openStore(cfg *config.Config) (api.Store, error) {
	switch cfg.Storage.Type {
	case config.StorageFile:
		return storage.NewFileStore(cfg.Storage.DataFile)

	case config.StoragePostgres:
		s, err := postgres.New(postgres.Config{
			DSN:            cfg.Storage.PostgresDSN,
			MaxOpenConns:   cfg.Storage.MaxOpenConns,
			MaxIdleConns:   cfg.Storage.MaxIdleConns,
			ConnectTimeout: cfg.Storage.ConnTimeout,
		})
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(context.Background()); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil

	case config.StorageGORM:
		s, err := gormstore.New(gormstore.Config{
			DSN:          cfg.Storage.PostgresDSN,
			MaxOpenConns: cfg.Storage.MaxOpenConns,
			MaxIdleConns: cfg.Storage.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(context.Background()); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
}
