package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/railsentry/mailgate/internal/config"
	"github.com/railsentry/mailgate/internal/httpapi"
	"github.com/railsentry/mailgate/internal/mailer"
	"github.com/railsentry/mailgate/internal/server"
	"github.com/railsentry/mailgate/pkg/logger"
	"github.com/railsentry/mailgate/pkg/ratelimiter"
)

func main() {
	var cfg config.Config
	config.MustLoad(&cfg)

	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	// Critical-setting problems are logged, not fatal: the gateway starts
	// in degraded mode and reports "SMTP not configured" per request.
	for _, problem := range cfg.Validate() {
		log.Warn("configuration problem", slog.String("problem", problem))
	}

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("gateway stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var store ratelimiter.Store
	switch cfg.RateLimit.Store {
	case "redis":
		opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()

		store, err = ratelimiter.NewRedisStore(client)
		if err != nil {
			return err
		}
	case "memory", "":
		ms := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreLogger(log))
		g.Go(ms.Run(ctx))
		store = ms
	default:
		return fmt.Errorf("unknown RATE_LIMIT_STORE %q", cfg.RateLimit.Store)
	}

	m := mailer.New(cfg.SMTP, mailer.WithLogger(log))

	router, err := httpapi.NewRouter(httpapi.NewHandler(cfg, m, log), store)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg.Server, server.WithLogger(log))
	if err != nil {
		return err
	}
	g.Go(srv.Run(ctx, router))

	log.Info("mailgate started",
		slog.String("addr", cfg.Server.Addr),
		slog.Bool("smtp_configured", m.IsConfigured()),
		slog.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
	)

	return g.Wait()
}
