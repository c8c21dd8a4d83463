// Package main provides the entry point for korrosync-server.
//
// korrosync-server is a self-hosted progress sync service for KOReader
// devices, backed by an embedded transactional key-value store.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/szaffarano/korrosync/internal/core/service"
	"github.com/szaffarano/korrosync/internal/infra/buildinfo"
	"github.com/szaffarano/korrosync/internal/infra/certwatch"
	"github.com/szaffarano/korrosync/internal/infra/confloader"
	"github.com/szaffarano/korrosync/internal/infra/shutdown"
	"github.com/szaffarano/korrosync/internal/server/config"
	"github.com/szaffarano/korrosync/internal/server/httpserver"
	"github.com/szaffarano/korrosync/internal/storage"
	"github.com/szaffarano/korrosync/internal/telemetry/logger"
	"github.com/szaffarano/korrosync/internal/telemetry/metric"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("korrosync-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting korrosync-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	metrics := metric.New()

	store, err := initStore(cfg, slogLogger, metrics)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	gate, err := service.NewGate(store, &service.GateConfig{
		Refill: rate.Limit(cfg.Gate.RateRefill),
		Burst:  cfg.Gate.RateBurst,
	}, slogLogger)
	if err != nil {
		store.Close()
		return fmt.Errorf("init gate: %w", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		UserService:       service.NewUserService(store, slogLogger),
		SyncService:       service.NewSyncService(store, slogLogger),
		Gate:              gate,
		Metrics:           metrics,
		MetricsEnabled:    cfg.Server.HTTP.MetricsEnabled,
		TrustProxyHeaders: cfg.Server.HTTP.TrustProxyHeaders,
		Logger:            slogLogger,
	})

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)

	// Reload the log level on config file changes.
	watcher, err := startConfigWatcher(*configFile, log)
	if err != nil {
		log.Warn("config watcher disabled", "error", err)
	}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	// Hooks run in reverse registration order: the HTTP server drains
	// first, storage closes last.
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing storage")
		return store.Close()
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		return gate.Close()
	})

	if watcher != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			return watcher.Stop()
		})
	}

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	serve := func() error { return httpServer.ListenAndServe() }
	if cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != "" {
		certWatcher, err := certwatch.New(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			certwatch.WithLogger(slogLogger))
		if err != nil {
			store.Close()
			return fmt.Errorf("load TLS certificate: %w", err)
		}
		certWatcher.StartAsync()

		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			certWatcher.Stop()
			return nil
		})

		serve = func() error {
			return httpServer.ListenAndServeTLSConfig(&tls.Config{
				GetCertificate: certWatcher.GetCertificate,
				MinVersion:     tls.VersionTLS12,
			})
		}
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)

		if err := serve(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger and installs it as the
// process default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.SetDefault(log)

	return log, logger.Slog(log), nil
}

// initStore opens the data directory and wires store metrics into the
// Prometheus registry.
func initStore(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Metrics) (*storage.BadgerStore, error) {
	storageCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	storageCfg.SyncWrites = cfg.Storage.SyncWrites
	storageCfg.Logger = log

	if cfg.Storage.GCInterval > 0 {
		storageCfg.GCInterval = cfg.Storage.GCInterval
	}

	store, err := storage.Open(storageCfg)
	if err != nil {
		return nil, err
	}

	metrics.Registry().MustRegister(metric.NewStoreCollector(store, log))

	return store, nil
}

// startConfigWatcher watches the config file and applies log level
// changes without a restart.
func startConfigWatcher(configFile string, log logger.Logger) (*confloader.Watcher, error) {
	if configFile == "" {
		return nil, nil
	}

	watcher, err := confloader.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Watch(configFile); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(path string) {
		loader := confloader.NewLoader(confloader.WithConfigFile(path))
		cfg := config.Default()
		if err := loader.Load(cfg); err != nil {
			log.Warn("config reload failed", "path", path, "error", err)
			return
		}

		logger.SetLevel(cfg.Log.Level)
		log.Info("log level reloaded", "level", cfg.Log.Level)
	})

	watcher.StartAsync()
	return watcher, nil
}
