package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradejournal/config"
	"tradejournal/internal/adapters/kite"
	"tradejournal/internal/adapters/logger"
	"tradejournal/internal/adapters/memcache"
	"tradejournal/internal/adapters/sqlite"
	"tradejournal/internal/app"
	"tradejournal/internal/httpapi"
	"tradejournal/internal/ports"
)

func main() {
	bootLog := logger.NewStdLogger(logger.LevelInfo)
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog.Error(ctx, err, "Failed to load configuration")
		os.Exit(1)
	}

	zapLog, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		bootLog.Error(ctx, err, "Failed to initialize logger")
		os.Exit(1)
	}
	defer zapLog.Sync()
	var appLogger ports.Logger = zapLog

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize repository")
		os.Exit(1)
	}
	defer repo.Close()

	var quotes ports.QuoteProvider
	if cfg.KiteAPIKey != "" {
		kiteClient, err := kite.NewClient(kite.Config{
			APIKey:      cfg.KiteAPIKey,
			AccessToken: cfg.KiteAccessToken,
			Logger:      appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "Failed to initialize Kite client")
			os.Exit(1)
		}
		quotes = kiteClient
	} else {
		appLogger.Info(ctx, "Kite credentials not configured, live quotes disabled")
	}

	svc, err := app.New(app.ServiceConfig{
		Logger:   appLogger,
		Trades:   repo,
		Batches:  repo,
		Settings: repo,
		Quotes:   quotes,
		Cache:    memcache.New(),
		CacheTTL: cfg.CacheTTL,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize service")
		os.Exit(1)
	}

	server, err := httpapi.NewServer(svc, appLogger, httpapi.Config{
		Password: cfg.AuthPassword,
		Secret:   cfg.AuthSecret,
		TokenTTL: cfg.TokenTTL,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize HTTP server")
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": cfg.HTTPAddr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		appLogger.Error(ctx, err, "HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(ctx, err, "Graceful shutdown failed")
	}
	appLogger.Info(ctx, "Server stopped")
}
