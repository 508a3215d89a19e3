// Package health provides health check implementations for external
// dependencies and an HTTP handler that aggregates them.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// Checker reports whether a single dependency is healthy.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// DBChecker checks a SQL database connection.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// RedisChecker checks a Redis connection.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING command.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler aggregates named checkers behind /health and /ready endpoints.
type Handler struct {
	checkers map[string]Checker
}

// NewHandler creates a Handler with the given named checkers.
// A nil or empty map means the process is always healthy.
func NewHandler(checkers map[string]Checker) *Handler {
	if checkers == nil {
		checkers = make(map[string]Checker)
	}
	return &Handler{checkers: checkers}
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Liveness reports process liveness without touching dependencies.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Readiness probes every dependency and reports 503 if any fails.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Checks: make(map[string]checkResult, len(h.checkers)),
	}
	status := http.StatusOK

	for name, checker := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = checkResult{Status: "down", Error: err.Error()}
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = checkResult{Status: "up"}
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
