package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	accountrepo "govcms/backend/internal/account/repository"
	"govcms/backend/internal/activity"
	activityrepo "govcms/backend/internal/activity/repository"
	"govcms/backend/internal/auth/handler"
	"govcms/backend/internal/auth/service"
	"govcms/backend/internal/config"
	"govcms/backend/internal/db"
	"govcms/backend/internal/ratelimit"
	"govcms/backend/internal/security"
	"govcms/backend/internal/server"
	sessionrepo "govcms/backend/internal/session/repository"
	"govcms/backend/internal/telemetry"
	otelsetup "govcms/backend/internal/telemetry/otel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "govcms-auth", false)
	if err != nil {
		logger.Error("telemetry", "error", err)
		os.Exit(1)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Non-fatal: the limiter degrades per its failure policy.
		logger.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	}

	privateKey, err := security.ParseSigningKey(cfg.JWTPrivateKey)
	if err != nil {
		logger.Error("jwt private key", "error", err)
		os.Exit(1)
	}
	publicKey, err := security.ParseVerifyKey(cfg.JWTPublicKey)
	if err != nil {
		logger.Error("jwt public key", "error", err)
		os.Exit(1)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey,
		cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	limiter := ratelimit.NewLimiter(
		ratelimit.NewRedisCounterStore(rdb),
		ratelimit.Config{
			IdentityMax: cfg.RateLimitIdentityMax,
			OriginMax:   cfg.RateLimitOriginMax,
			Window:      cfg.Window(),
			FailOpen:    cfg.RateLimitFailOpen,
		},
		logger,
	)

	metrics, err := telemetry.NewAuthMetrics(providers.MeterProvider.Meter("govcms-auth"))
	if err != nil {
		logger.Error("metrics", "error", err)
		os.Exit(1)
	}

	sessions := service.NewSessionService(
		accountrepo.NewPostgresRepository(pool),
		sessionrepo.NewPostgresRepository(pool),
		limiter,
		activity.NewLogger(activityrepo.NewPostgresRepository(pool), logger),
		security.NewHasher(cfg.BcryptCost),
		tokens,
		metrics,
		logger,
	)

	go sessions.RunSweeper(ctx, cfg.SweepEvery())

	r := server.NewRouter(handler.NewHandler(sessions, logger), cfg.AllowedOrigins())
	srv := server.New(cfg.HTTPAddr, r, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
