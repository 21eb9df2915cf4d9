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

	"github.com/pluginmanifest/registry/internal/api"
	"github.com/pluginmanifest/registry/internal/config"
	"github.com/pluginmanifest/registry/internal/github"
	"github.com/pluginmanifest/registry/internal/gitstore"
	"github.com/pluginmanifest/registry/internal/middleware"
	"github.com/pluginmanifest/registry/internal/registry"
	"github.com/pluginmanifest/registry/internal/sync"
)

const (
	webhookDebounce = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("plugin registry failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Info("starting plugin registry",
		"repo_url", cfg.RegistryRepoURL,
		"branch", cfg.RegistryBranch,
		"cache_size", cfg.CacheSize,
		"fail_fast", cfg.FailFast,
	)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	reg, err := registry.New(registry.Config{
		Source:    store,
		CacheSize: cfg.CacheSize,
		FailFast:  cfg.FailFast,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}
	if err := reg.LoadIndex(); err != nil {
		return fmt.Errorf("failed to load %s: %w", registry.IndexFile, err)
	}
	logger.Info("index loaded", "plugin_count", reg.PluginCount(), "commit", store.CurrentCommit())

	syncMgr := sync.NewManager(sync.Config{
		Store:        store,
		Registry:     reg,
		PollInterval: cfg.PollInterval,
		Debounce:     webhookDebounce,
		Logger:       logger,
	})

	shutdownTracer, err := middleware.InitTracer(cfg.OTLPEndpoint, api.BuildInfo().Version)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	router := api.NewRouter(api.Config{
		Registry:      reg,
		SyncManager:   syncMgr,
		WebhookSecret: cfg.WebhookSecret,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		FailFast:      cfg.FailFast,
		Logger:        logger,
	})

	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	go syncMgr.Start(syncCtx)

	err = serve(&http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      middleware.Chain(router, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, logger)
	stopSync()

	if shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if terr := shutdownTracer(ctx); terr != nil {
			logger.Warn("tracer shutdown failed", "error", terr)
		}
	}
	return err
}

// openStore clones the plugin repository, authenticating as a GitHub App
// when credentials are configured
func openStore(cfg *config.Config, logger *slog.Logger) (*gitstore.Store, error) {
	storeCfg := gitstore.Config{
		RepoURL:   cfg.RegistryRepoURL,
		Branch:    cfg.RegistryBranch,
		LocalPath: cfg.DataPath,
		Logger:    logger,
	}
	creds := github.AppCredentials{
		AppID:          cfg.GitHubAppID,
		PrivateKey:     cfg.GitHubAppPrivateKey,
		InstallationID: cfg.GitHubInstallationID,
	}
	if creds.Configured() {
		auth, err := github.NewAppAuth(creds)
		if err != nil {
			return nil, fmt.Errorf("failed to set up GitHub App auth: %w", err)
		}
		storeCfg.Auth = auth
	}

	store, err := gitstore.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create git store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CloneTimeout)
	defer cancel()

	logger.Info("cloning plugin repository", "timeout", cfg.CloneTimeout)
	if err := store.Clone(ctx); err != nil {
		return nil, fmt.Errorf("failed to clone %s within %s: %w", cfg.RegistryRepoURL, cfg.CloneTimeout, err)
	}
	return store, nil
}

// serve runs srv until SIGINT/SIGTERM, then shuts it down gracefully
func serve(srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
