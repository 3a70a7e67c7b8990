package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"accountd/app"
	"accountd/internal/config"
	"accountd/internal/observability"
)

func main() {
	_ = godotenv.Load()

	logger := observability.NewLogger()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("load_config_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	runtime, err := app.Build(cfg, app.Options{RunMigrations: true})
	if err != nil {
		logger.Error("bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer runtime.Close()

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("server_start", map[string]any{"addr": addr, "env": cfg.Environment})
	if err := http.ListenAndServe(addr, runtime.Handler); err != nil {
		logger.Error("server_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
