package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fruitai/outreach/internal/config"
	"github.com/fruitai/outreach/internal/logger"
)

// Counter is the windowed counter behind rate limiting. database.Redis
// satisfies it.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	WindowTTL(ctx context.Context, key string) (time.Duration, error)
}

// Middleware holds all HTTP middleware
type Middleware struct {
	rdb Counter
	log *logger.Logger
	cfg *config.Config
}

// New creates a new Middleware instance
func New(rdb Counter, log *logger.Logger, cfg *config.Config) *Middleware {
	return &Middleware{
		rdb: rdb,
		log: log.WithComponent("http"),
		cfg: cfg,
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
