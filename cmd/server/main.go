package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"github.com/commune/backend/internal/chat"
	"github.com/commune/backend/internal/config"
	"github.com/commune/backend/internal/database"
	"github.com/commune/backend/internal/db"
	"github.com/commune/backend/internal/directmsg"
	"github.com/commune/backend/internal/logging"
	"github.com/commune/backend/internal/relay"
	"github.com/commune/backend/internal/router"
	"github.com/commune/backend/internal/services"
	sentryscrub "github.com/commune/backend/internal/sentry"
)

func main() {
	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	if err := run(); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return logging.WrapError(err, "load config")
	}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:                   cfg.SentryDSN,
			Environment:           cfg.SentryEnvironment,
			BeforeSend:            sentryscrub.ScrubEvent,
			BeforeSendTransaction: sentryscrub.ScrubTransaction,
		})
		if err != nil {
			return logging.WrapError(err, "init sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	sqlDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		return logging.WrapError(err, "connect to database")
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(sqlDB); err != nil {
		return logging.WrapError(err, "run migrations")
	}

	if cfg.AdminEmail != "" {
		accounts := services.NewAccountService(db.New(sqlDB))
		if _, err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return logging.WrapError(err, "bootstrap admin")
		}
	}

	deps, err := realtime(ctx, cfg)
	if err != nil {
		return err
	}
	deps.DB = sqlDB

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(ctx, cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end when the base context is cancelled at shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", srv.Addr), slog.String("instance", cfg.InstanceID))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return logging.WrapError(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", slog.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return logging.WrapError(err, "shutdown")
	}
	return nil
}

// realtime builds the chat broadcaster and direct-message bus, connected
// through Redis when REDIS_URL is set.
func realtime(ctx context.Context, cfg *config.Config) (router.Dependencies, error) {
	if cfg.RedisURL == "" {
		return router.Dependencies{
			Broadcaster: chat.NewBroadcaster(cfg.ChatHistorySize),
			Bus:         directmsg.NewBus(nil),
		}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return router.Dependencies{}, logging.WrapError(err, "parse REDIS_URL")
	}
	rl := relay.New(redis.NewClient(opts), cfg.InstanceID)
	if err := rl.PingContext(ctx); err != nil {
		return router.Dependencies{}, logging.WrapError(err, "connect to redis")
	}

	broadcaster := chat.NewBroadcaster(cfg.ChatHistorySize, chat.WithForwarder(rl))
	bus := directmsg.NewBus(rl)

	if err := relay.Listen(ctx, rl, chat.RelayChannel, broadcaster.Receive); err != nil {
		return router.Dependencies{}, logging.WrapError(err, "subscribe chat relay")
	}
	if err := relay.Listen(ctx, rl, directmsg.RelayChannel, bus.Receive); err != nil {
		return router.Dependencies{}, logging.WrapError(err, "subscribe direct relay")
	}

	slog.Info("relay enabled", slog.String("instance", cfg.InstanceID))
	return router.Dependencies{Broadcaster: broadcaster, Bus: bus, Relay: rl}, nil
}
