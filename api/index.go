package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"

	"accountd/app"
	"accountd/internal/config"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler is the serverless entrypoint: the runtime is built once per
// instance and reused across invocations.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		var cfg config.Config
		cfg, initErr = config.FromEnv()
		if initErr != nil {
			return
		}
		apiRuntime, initErr = app.Build(cfg, app.Options{
			RunMigrations: envBool("RUN_MIGRATIONS_ON_STARTUP"),
		})
	})

	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "application bootstrap failed"})
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}

func envBool(name string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
