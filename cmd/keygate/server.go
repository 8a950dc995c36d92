package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/alphabot-ai/keygate/internal/apikey"
	"github.com/alphabot-ai/keygate/internal/auth"
	"github.com/alphabot-ai/keygate/internal/config"
	httpapp "github.com/alphabot-ai/keygate/internal/http"
	"github.com/alphabot-ai/keygate/internal/issuance"
	"github.com/alphabot-ai/keygate/internal/logging"
	"github.com/alphabot-ai/keygate/internal/rate"
	"github.com/alphabot-ai/keygate/internal/store/sqlite"
	"github.com/alphabot-ai/keygate/internal/verify"
)

func runServer(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	keys := apikey.NewGenerator(cfg.HashSecret)
	gate := rate.NewGate(limiter, cfg.RatePolicies(), logger)
	promo := verify.NewPromoVerifier(cfg.PromoCodes)

	server, err := httpapp.NewServer(cfg, httpapp.Deps{
		Store:    store,
		Auth:     auth.NewService(store, keys, cfg.NonceTTL),
		Gate:     gate,
		Issuance: issuance.NewService(gate, store, keys, logger),
		Promo:    promo,
		Social:   verify.NewSocialVerifier(cfg.OEmbed.Endpoint, cfg.OEmbed.Timeout, logger),
		Log:      logger,
		Build:    httpapp.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime},
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "keygate listening",
			"addr", cfg.Addr,
			"rate_backend", cfg.RateBackend,
			"promo_codes", promo.Len(),
			"version", version,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newLimiter picks the counter store. An unreachable Redis is logged but not
// fatal: the gate fails closed until it comes back.
func newLimiter(ctx context.Context, cfg config.Config, logger logging.Logger) (rate.Limiter, func()) {
	if cfg.RateBackend != config.RateBackendRedis {
		return rate.NewMemory(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn(ctx, "redis unreachable, rate-limited endpoints will return 503", "addr", cfg.Redis.Addr, "error", err)
	}
	return rate.NewRedis(client, cfg.Redis.Prefix), func() { _ = client.Close() }
}
