package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
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

// HealthChecker provides comprehensive health checks for the server
type HealthChecker struct {
	pool        *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
	version     string
	gitCommit   string
}

// NewHealthChecker creates a new health checker with the given dependencies
func NewHealthChecker(pool *pgxpool.Pool, riverClient *river.Client[pgx.Tx], version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		pool:        pool,
		riverClient: riverClient,
		version:     version,
		gitCommit:   gitCommit,
	}
}

// Health returns a comprehensive health check handler
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			// Server is draining; report it instead of running checks.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "shutting_down",
			})
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := make(map[string]CheckResult)
		checks["database"] = h.checkDatabase(ctx)
		checks["migrations"] = h.checkMigrations(ctx)
		checks["job_queue"] = h.checkJobQueue(ctx)

		overallStatus := "healthy"
		statusCode := http.StatusOK
		for name, check := range checks {
			gauge := 0.0
			if check.Status == "pass" {
				gauge = 1.0
			}
			metrics.HealthCheckStatus.WithLabelValues(name).Set(gauge)
			metrics.HealthCheckLatency.WithLabelValues(name).Set(float64(check.LatencyMs))

			if check.Status == "fail" {
				overallStatus = "unhealthy"
				statusCode = http.StatusServiceUnavailable
			} else if check.Status == "warn" && overallStatus == "healthy" {
				overallStatus = "degraded"
			}
		}
		if statusCode == http.StatusOK {
			metrics.HealthStatus.Set(1)
		} else {
			metrics.HealthStatus.Set(0)
		}

		response := HealthCheck{
			Status:    overallStatus,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// checkDatabase verifies PostgreSQL connection and query execution
func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()

	if h.pool == nil {
		return CheckResult{
			Status:  "fail",
			Message: "Database pool not initialized",
			Details: map[string]interface{}{
				"remediation": "Check that DATABASE_URL is set correctly and PostgreSQL is running",
			},
		}
	}

	// Per-check timeout so one slow check cannot starve the others.
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	err := h.pool.QueryRow(dbCtx, "SELECT 1").Scan(&result)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		message := "Database query failed"
		details := map[string]interface{}{
			"error": err.Error(),
		}

		if ctx.Err() == context.DeadlineExceeded || dbCtx.Err() == context.DeadlineExceeded {
			message = "Database query timed out after 2 seconds"
			details["remediation"] = "Check PostgreSQL performance, network latency, or increase timeout"
		} else if strings.Contains(err.Error(), "connection refused") {
			message = "Database connection refused"
			details["remediation"] = "Verify PostgreSQL is running and DATABASE_URL host/port are correct"
		} else if strings.Contains(err.Error(), "no such host") || strings.Contains(err.Error(), "dial tcp") {
			message = "Cannot reach database host"
			details["remediation"] = "Check DATABASE_URL hostname and network connectivity"
		} else if strings.Contains(err.Error(), "authentication failed") || strings.Contains(err.Error(), "password") {
			message = "Database authentication failed"
			details["remediation"] = "Verify DATABASE_URL username and password are correct"
		} else if strings.Contains(err.Error(), "database") && strings.Contains(err.Error(), "does not exist") {
			message = "Database does not exist"
			details["remediation"] = "Create database or check DATABASE_URL database name"
		} else {
			details["remediation"] = "Check DATABASE_URL environment variable and PostgreSQL service status"
		}

		return CheckResult{
			Status:    "fail",
			Message:   message,
			LatencyMs: latency,
			Details:   details,
		}
	}

	stats := h.pool.Stat()
	details := map[string]interface{}{
		"max_connections":      stats.MaxConns(),
		"total_connections":    stats.TotalConns(),
		"idle_connections":     stats.IdleConns(),
		"acquired_connections": stats.AcquiredConns(),
	}

	return CheckResult{
		Status:    "pass",
		Message:   "PostgreSQL connection successful",
		LatencyMs: latency,
		Details:   details,
	}
}

// checkMigrations verifies migration version matches expected
func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	start := time.Now()

	if h.pool == nil {
		return CheckResult{
			Status:  "fail",
			Message: "Database pool not initialized",
			Details: map[string]interface{}{
				"remediation": "Check that DATABASE_URL is set correctly and PostgreSQL is running",
			},
		}
	}

	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var version int64
	var dirty bool
	query := `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`
	err := h.pool.QueryRow(migCtx, query).Scan(&version, &dirty)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		message := "Failed to query migration version"
		details := map[string]interface{}{
			"error": err.Error(),
		}

		if strings.Contains(err.Error(), "does not exist") {
			message = "Migrations table not found"
			details["remediation"] = "Run database migrations first: riskserver migrate up"
		} else if strings.Contains(err.Error(), "connection") {
			details["remediation"] = "Database connection issue - check DATABASE_URL and PostgreSQL status"
		} else {
			details["remediation"] = "Verify migrations have been applied and schema_migrations table exists"
		}

		return CheckResult{
			Status:    "fail",
			Message:   message,
			LatencyMs: latency,
			Details:   details,
		}
	}

	if dirty {
		return CheckResult{
			Status:    "fail",
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details: map[string]interface{}{
				"version":     version,
				"dirty":       dirty,
				"remediation": "Migration failed mid-transaction; resolve before running new migrations",
				"action":      "Do NOT run new migrations until this is resolved",
			},
		}
	}

	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details: map[string]interface{}{
			"version": version,
			"dirty":   false,
		},
	}
}

// checkJobQueue verifies the River job queue is operational
func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	start := time.Now()

	if h.riverClient == nil {
		return CheckResult{
			Status:  "warn",
			Message: "Job queue not initialized (optional)",
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// Distinguish "River not migrated" (warn) from "query failed" (fail).
	var tableExists bool
	tableCheckQuery := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = 'river_job'
		)
	`
	err := h.pool.QueryRow(jobCtx, tableCheckQuery).Scan(&tableExists)
	if err != nil {
		latency := time.Since(start).Milliseconds()
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to check job queue table existence",
			LatencyMs: latency,
			Details: map[string]interface{}{
				"error":       err.Error(),
				"remediation": "Database connection issue - check DATABASE_URL and PostgreSQL status",
			},
		}
	}

	if !tableExists {
		latency := time.Since(start).Milliseconds()
		return CheckResult{
			Status:    "warn",
			Message:   "River job queue table not found",
			LatencyMs: latency,
			Details: map[string]interface{}{
				"remediation": "Run riskserver migrate up to create the queue schema",
			},
		}
	}

	query := `SELECT COUNT(*) FROM river_job WHERE state = ANY($1)`
	var activeJobs int64
	err = h.pool.QueryRow(jobCtx, query, []string{"available", "running"}).Scan(&activeJobs)
	if err != nil {
		latency := time.Since(start).Milliseconds()
		message := "Failed to query job queue"
		details := map[string]interface{}{
			"error": err.Error(),
		}

		if strings.Contains(err.Error(), "syntax error") {
			details["remediation"] = "River table schema mismatch - check migration version"
		} else {
			details["remediation"] = "Check database connectivity and river_job table permissions"
		}

		return CheckResult{
			Status:    "fail",
			Message:   message,
			LatencyMs: latency,
			Details:   details,
		}
	}

	// A stale queue heartbeat means workers stopped picking up jobs even
	// though the table is reachable.
	var staleQueues int64
	heartbeatQuery := `SELECT COUNT(*) FROM river_queue WHERE updated_at < now() - interval '5 minutes'`
	if err := h.pool.QueryRow(jobCtx, heartbeatQuery).Scan(&staleQueues); err == nil && staleQueues > 0 {
		return CheckResult{
			Status:    "warn",
			Message:   "One or more queues have stale heartbeats",
			LatencyMs: time.Since(start).Milliseconds(),
			Details: map[string]interface{}{
				"active_jobs":  activeJobs,
				"stale_queues": staleQueues,
				"remediation":  "Check that the server's queue client is running",
			},
		}
	}

	return CheckResult{
		Status:    "pass",
		Message:   "River job queue operational",
		LatencyMs: time.Since(start).Milliseconds(),
		Details: map[string]interface{}{
			"active_jobs": activeJobs,
		},
	}
}

type queueDiagnostics struct {
	Name          string         `json:"name"`
	Paused        bool           `json:"paused"`
	LastHeartbeat *time.Time     `json:"last_heartbeat,omitempty"`
	Counts        map[string]int `json:"counts"`
}

type workersResponse struct {
	Queues []queueDiagnostics `json:"queues"`
	Totals map[string]int     `json:"totals"`
}

// Workers reports per-queue diagnostics: paused state, heartbeat, and
// in-flight job counts. Read-only; intended for operators, not probes.
func (h *HealthChecker) Workers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.pool == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "database pool not initialized"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		queues, err := h.queueDiagnostics(ctx)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		totals := map[string]int{}
		for _, q := range queues {
			for state, count := range q.Counts {
				totals[state] += count
			}
		}

		writeJSON(w, http.StatusOK, workersResponse{Queues: queues, Totals: totals})
	}
}

var workerStates = []string{"running", "available", "scheduled", "retryable"}

func (h *HealthChecker) queueDiagnostics(ctx context.Context) ([]queueDiagnostics, error) {
	rows, err := h.pool.Query(ctx, `SELECT name, paused_at, updated_at FROM river_queue ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query queues: %w", err)
	}
	defer rows.Close()

	var queues []queueDiagnostics
	index := map[string]int{}
	for rows.Next() {
		var (
			name      string
			pausedAt  *time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&name, &pausedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		heartbeat := updatedAt
		index[name] = len(queues)
		queues = append(queues, queueDiagnostics{
			Name:          name,
			Paused:        pausedAt != nil,
			LastHeartbeat: &heartbeat,
			Counts:        emptyCounts(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read queues: %w", err)
	}

	countRows, err := h.pool.Query(ctx, `
		SELECT queue, state, COUNT(*)
		FROM river_job
		WHERE state = ANY($1)
		GROUP BY queue, state`, workerStates)
	if err != nil {
		return nil, fmt.Errorf("query job counts: %w", err)
	}
	defer countRows.Close()

	for countRows.Next() {
		var (
			queue, state string
			count        int
		)
		if err := countRows.Scan(&queue, &state, &count); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		i, ok := index[queue]
		if !ok {
			// Jobs can outlive their queue row after a config change.
			index[queue] = len(queues)
			queues = append(queues, queueDiagnostics{Name: queue, Counts: emptyCounts()})
			i = index[queue]
		}
		queues[i].Counts[state] = count
	}
	if err := countRows.Err(); err != nil {
		return nil, fmt.Errorf("read job counts: %w", err)
	}

	return queues, nil
}

func emptyCounts() map[string]int {
	counts := make(map[string]int, len(workerStates))
	for _, state := range workerStates {
		counts[state] = 0
	}
	return counts
}

// Healthz returns a lightweight liveness response
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

// Readyz returns a readiness response
func Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ready")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
