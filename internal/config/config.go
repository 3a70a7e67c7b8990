package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the service reads at startup. It is built
// once in cmd/api (or the serverless entrypoint) and handed to constructors
// by value; nothing mutates it afterwards.
type Config struct {
	Port        string
	Environment string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	LockoutMaxAttempts int
	LockoutDuration    time.Duration

	RegisterLimitMax    int
	RegisterLimitWindow time.Duration
	LoginLimitMax       int
	LoginLimitWindow    time.Duration
	ResetRequestMax     int
	ResetRequestWindow  time.Duration
	ResetSubmitMax      int
	ResetSubmitWindow   time.Duration

	PasswordResetTTL time.Duration

	SentryDSN  string
	CronSecret string

	LockoutRetention time.Duration
	ResetRetention   time.Duration
	CleanupBatchSize int
}

// FromEnv reads the process environment into a Config. Required values
// missing means the service cannot run, so an error is returned rather
// than a partial config.
func FromEnv() (Config, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return Config{}, fmt.Errorf("missing required env: DATABASE_URL")
	}
	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("missing required env: JWT_SECRET")
	}
	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if redisAddr == "" {
		return Config{}, fmt.Errorf("missing required env: REDIS_ADDR")
	}

	return Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("APP_ENV", "development"),

		DatabaseURL: databaseURL,

		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envIntOrDefault("REDIS_DB", 0),

		JWTSecret:  jwtSecret,
		AccessTTL:  envHoursOrDefault("ACCESS_TOKEN_TTL_HOURS", 24),
		RefreshTTL: envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),

		LockoutMaxAttempts: envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		LockoutDuration:    envMinutesOrDefault("LOGIN_LOCK_MINUTES", 120),

		RegisterLimitMax:    envIntOrDefault("REGISTER_RATE_LIMIT_MAX", 3),
		RegisterLimitWindow: envMinutesOrDefault("REGISTER_RATE_LIMIT_WINDOW_MINUTES", 60),
		LoginLimitMax:       envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginLimitWindow:    envMinutesOrDefault("LOGIN_RATE_LIMIT_WINDOW_MINUTES", 1),
		ResetRequestMax:     envIntOrDefault("RESET_REQUEST_RATE_LIMIT_MAX", 3),
		ResetRequestWindow:  envMinutesOrDefault("RESET_REQUEST_RATE_LIMIT_WINDOW_MINUTES", 60),
		ResetSubmitMax:      envIntOrDefault("RESET_SUBMIT_RATE_LIMIT_MAX", 5),
		ResetSubmitWindow:   envMinutesOrDefault("RESET_SUBMIT_RATE_LIMIT_WINDOW_MINUTES", 15),

		PasswordResetTTL: envMinutesOrDefault("PASSWORD_RESET_TTL_MINUTES", 60),

		SentryDSN:  os.Getenv("SENTRY_DSN"),
		CronSecret: os.Getenv("CRON_SECRET"),

		LockoutRetention: envDaysOrDefault("LOCKOUT_RETENTION_DAYS", 30),
		ResetRetention:   envDaysOrDefault("RESET_TOKEN_RETENTION_DAYS", 7),
		CleanupBatchSize: envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	}, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}
