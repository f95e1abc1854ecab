package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "fail"

	checkTimeout = 2 * time.Second
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	LatencyMs int64                  `json:"latency_ms,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// CheckFunc runs one dependency check. It receives a context bounded by
// checkTimeout.
type CheckFunc func(ctx context.Context) CheckResult

type Pinger interface {
	Ping(ctx context.Context) error
}

type namedCheck struct {
	name string
	fn   CheckFunc
}

// HealthChecker aggregates dependency checks. Any failing check makes the
// server unhealthy; warnings only degrade it.
type HealthChecker struct {
	checks    []namedCheck
	version   string
	gitCommit string
	now       func() time.Time
}

func NewHealthChecker(version, gitCommit string) *HealthChecker {
	return &HealthChecker{version: version, gitCommit: gitCommit, now: time.Now}
}

func (h *HealthChecker) AddCheck(name string, fn CheckFunc) *HealthChecker {
	h.checks = append(h.checks, namedCheck{name: name, fn: fn})
	return h
}

// Run executes every check and returns the aggregate report.
func (h *HealthChecker) Run(ctx context.Context) (HealthCheck, int) {
	results := make(map[string]CheckResult, len(h.checks))
	for _, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		results[check.name] = check.fn(checkCtx)
		cancel()
	}

	overall := "healthy"
	status := http.StatusOK
	for _, result := range results {
		if result.Status == checkFail {
			overall = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
		if result.Status == checkWarn {
			overall = "degraded"
		}
	}

	return HealthCheck{
		Status:    overall,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Checks:    results,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}, status
}

// Health serves the full report on GET /health.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "shutting_down"})
			return
		default:
		}

		report, status := h.Run(r.Context())
		writeJSON(w, status, report)
	}
}

// Readyz answers 200 only when no check fails.
func (h *HealthChecker) Readyz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, status := h.Run(r.Context())
		if status != http.StatusOK {
			respondHealth(w, status, "not_ready")
			return
		}
		respondHealth(w, http.StatusOK, "ready")
	}
}

// PingCheck reports a dependency through its Ping. Optional dependencies
// warn instead of failing.
func PingCheck(p Pinger, name string, optional bool) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if p == nil {
			if optional {
				return CheckResult{Status: checkWarn, Message: name + " not configured (optional)"}
			}
			return CheckResult{Status: checkFail, Message: name + " not initialized"}
		}
		start := time.Now()
		err := p.Ping(ctx)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			status := checkFail
			if optional {
				status = checkWarn
			}
			return CheckResult{
				Status:    status,
				Message:   name + " ping failed",
				LatencyMs: latency,
				Details:   map[string]interface{}{"error": err.Error()},
			}
		}
		return CheckResult{Status: checkPass, Message: name + " reachable", LatencyMs: latency}
	}
}

// PostgresCheck runs SELECT 1 and reports pool statistics.
func PostgresCheck(pool *pgxpool.Pool) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if pool == nil {
			return CheckResult{
				Status:  checkFail,
				Message: "Database pool not initialized",
				Details: map[string]interface{}{"remediation": "Check that DATABASE_URL is set correctly and PostgreSQL is running"},
			}
		}

		start := time.Now()
		var result int
		err := pool.QueryRow(ctx, "SELECT 1").Scan(&result)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			message, remediation := describeDatabaseError(ctx, err)
			return CheckResult{
				Status:    checkFail,
				Message:   message,
				LatencyMs: latency,
				Details:   map[string]interface{}{"error": err.Error(), "remediation": remediation},
			}
		}

		stats := pool.Stat()
		return CheckResult{
			Status:    checkPass,
			Message:   "PostgreSQL connection successful",
			LatencyMs: latency,
			Details: map[string]interface{}{
				"max_connections":      stats.MaxConns(),
				"total_connections":    stats.TotalConns(),
				"idle_connections":     stats.IdleConns(),
				"acquired_connections": stats.AcquiredConns(),
			},
		}
	}
}

func describeDatabaseError(ctx context.Context, err error) (string, string) {
	msg := err.Error()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "Database query timed out", "Check PostgreSQL performance or network latency"
	case strings.Contains(msg, "connection refused"):
		return "Database connection refused", "Verify PostgreSQL is running and DATABASE_URL host/port are correct"
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "dial tcp"):
		return "Cannot reach database host", "Check DATABASE_URL hostname and network connectivity"
	case strings.Contains(msg, "authentication failed"), strings.Contains(msg, "password"):
		return "Database authentication failed", "Verify DATABASE_URL username and password are correct"
	default:
		return "Database query failed", "Check DATABASE_URL and PostgreSQL service status"
	}
}

// MigrationsCheck fails when golang-migrate left the schema dirty.
func MigrationsCheck(pool *pgxpool.Pool) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if pool == nil {
			return CheckResult{Status: checkFail, Message: "Database pool not initialized"}
		}

		start := time.Now()
		var (
			version int64
			dirty   bool
		)
		err := pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			remediation := "Verify migrations have been applied"
			if strings.Contains(err.Error(), "does not exist") {
				remediation = "Run database migrations first: server migrate up"
			}
			return CheckResult{
				Status:    checkFail,
				Message:   "Failed to query migration version",
				LatencyMs: latency,
				Details:   map[string]interface{}{"error": err.Error(), "remediation": remediation},
			}
		}
		if dirty {
			return CheckResult{
				Status:    checkFail,
				Message:   "Database in dirty migration state - manual intervention required",
				LatencyMs: latency,
				Details:   map[string]interface{}{"version": version, "dirty": true},
			}
		}
		return CheckResult{
			Status:    checkPass,
			Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
			LatencyMs: latency,
			Details:   map[string]interface{}{"version": version, "dirty": false},
		}
	}
}

// JobQueueCheck reports the river queue backing ledger reconciliation. A
// missing river_job table only warns, since jobs are optional.
func JobQueueCheck(pool *pgxpool.Pool) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if pool == nil {
			return CheckResult{Status: checkWarn, Message: "Job queue not initialized (optional)"}
		}

		start := time.Now()
		var exists bool
		err := pool.QueryRow(ctx, `SELECT to_regclass('river_job') IS NOT NULL`).Scan(&exists)
		if err != nil {
			return CheckResult{
				Status:    checkFail,
				Message:   "Failed to check job queue table existence",
				LatencyMs: time.Since(start).Milliseconds(),
				Details:   map[string]interface{}{"error": err.Error()},
			}
		}
		if !exists {
			return CheckResult{
				Status:    checkWarn,
				Message:   "River job queue table not found",
				LatencyMs: time.Since(start).Milliseconds(),
				Details:   map[string]interface{}{"remediation": "Run server migrate up to create river tables"},
			}
		}

		var active int64
		err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM river_job WHERE state = ANY($1)`, []string{"available", "running"}).Scan(&active)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			return CheckResult{
				Status:    checkFail,
				Message:   "Failed to query job queue",
				LatencyMs: latency,
				Details:   map[string]interface{}{"error": err.Error()},
			}
		}
		return CheckResult{
			Status:    checkPass,
			Message:   "River job queue operational",
			LatencyMs: latency,
			Details:   map[string]interface{}{"active_jobs": active},
		}
	}
}

// Healthz is the liveness probe; it never touches dependencies.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	writeJSON(w, status, healthResponse{Status: value})
}
