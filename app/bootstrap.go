package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"accountd/internal/auth"
	"accountd/internal/config"
	"accountd/internal/db"
	"accountd/internal/maintenance"
	"accountd/internal/observability"
	"accountd/internal/redisdb"
	"accountd/internal/user"
)

type Options struct {
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole service from a Config: storage, the auth core,
// handlers, and the middleware stack. Everything is constructed here and
// passed down; no component reads the environment on its own.
func Build(cfg config.Config, options Options) (*Runtime, error) {
	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if options.RunMigrations {
		if err := db.RunMigrations(context.Background(), database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	redisClient, err := redisdb.Open(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	blacklist := auth.NewBlacklist(redisClient, tokens.RefreshTTL())
	lockout := auth.NewLockoutPolicy(cfg.LockoutMaxAttempts, cfg.LockoutDuration)

	repo := auth.NewRepository(database)
	service := auth.NewService(repo, tokens, blacklist, lockout, cfg.PasswordResetTTL, logger)
	gate := auth.NewGate(service)
	limiter := auth.NewRateLimiter(redisClient)

	authHandler := auth.NewHandler(service)
	userHandler := user.NewHandler(service)
	cleanupHandler := maintenance.NewCleanupHandler(
		repo,
		logger,
		cfg.CronSecret,
		cfg.LockoutRetention,
		cfg.ResetRetention,
		cfg.CleanupBatchSize,
	)

	registerLimit := auth.LimitPolicy{Name: "register", Max: cfg.RegisterLimitMax, Window: cfg.RegisterLimitWindow}
	loginLimit := auth.LimitPolicy{Name: "login", Max: cfg.LoginLimitMax, Window: cfg.LoginLimitWindow}
	resetRequestLimit := auth.LimitPolicy{Name: "reset_request", Max: cfg.ResetRequestMax, Window: cfg.ResetRequestWindow}
	resetSubmitLimit := auth.LimitPolicy{Name: "reset_submit", Max: cfg.ResetSubmitMax, Window: cfg.ResetSubmitWindow}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/register", limiter.Middleware(registerLimit, http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /auth/login", limiter.Middleware(loginLimit, http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh-token", authHandler.Refresh)
	mux.Handle("POST /auth/logout", gate.Middleware(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /auth/password-reset/request", limiter.Middleware(resetRequestLimit, http.HandlerFunc(authHandler.RequestPasswordReset)))
	mux.Handle("POST /auth/password-reset/submit", limiter.Middleware(resetSubmitLimit, http.HandlerFunc(authHandler.SubmitPasswordReset)))

	mux.Handle("GET /users/me", gate.Middleware(http.HandlerFunc(userHandler.Me)))
	mux.Handle("PATCH /users/me", gate.Middleware(http.HandlerFunc(userHandler.UpdateMe)))
	mux.Handle("PATCH /users/me/password", gate.Middleware(http.HandlerFunc(userHandler.ChangePassword)))
	mux.Handle("DELETE /users/me", gate.Middleware(http.HandlerFunc(userHandler.DeleteMe)))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database, redisClient))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			_ = redisClient.Close()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		health := "ok"
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			health = "degraded"
		} else if err := redisClient.Ping(ctx).Err(); err != nil {
			status = http.StatusServiceUnavailable
			health = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": health,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
