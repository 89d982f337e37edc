package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdamBeresnev/op-tournament/internal/config"
	"github.com/AdamBeresnev/op-tournament/internal/db"
	"github.com/AdamBeresnev/op-tournament/internal/logging"
	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/notify"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores := store.NewStores(database)
	metricsSvc := metrics.NewService()

	hub := notify.NewHub(logger, notify.WithAllowedOrigins(cfg.AllowedOrigins...))
	go hub.Run(ctx)

	var (
		announcer notify.Announcer      = notify.NewLogNotifier(logger)
		notifier  notify.DirectNotifier = notify.NewLogNotifier(logger)
	)
	if cfg.SlackEnabled() {
		announcer = notify.NewSlackAnnouncer(cfg.SlackBotToken, cfg.SlackChannelID)
		notifier = notify.NewSlackNotifier(cfg.SlackBotToken, stores.Users)
		logger.Info("Slack notifications enabled", "channel_id", cfg.SlackChannelID)
	}
	dispatcher := notify.NewDispatcher(logger, metricsSvc, cfg.NotifyTimeout,
		notify.WithAnnouncer(announcer),
		notify.WithBroadcaster(hub),
		notify.WithDirectNotifier(notifier),
	)

	if cfg.SlackLoginEnabled() {
		middleware.InitAuth(cfg.SlackClientID, cfg.SlackClientSecret, cfg.SlackCallbackURL, cfg.SessionSecret)
	}
	if cfg.DevActorHeader {
		logger.Warn("Trusting the X-Actor-ID header, do not run this in production")
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)

	app := newApp(database, stores, dispatcher, metricsSvc, hub, logger)
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: app.routes(sessionManager, cfg.DevActorHeader),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server started", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		} else {
			logger.Info("Server gracefully stopped")
		}
	}

	// Deliver what was committed before the process exits
	dispatcher.Wait()
	return nil
}
