package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	applog "parcelas/internal/log"
)

type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withOwner resolves the caller from the configured user header and adds it
// to the request logger.
func (s *Server) withOwner(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := parseOwner(r, s.userHeader)
		if err != nil {
			UnauthorizedError(err.Error()).Write(w)
			return
		}
		logger := applog.FromContext(r.Context()).With(applog.FieldOwnerID, owner)
		ctx := context.WithValue(r.Context(), applog.LoggerContextKey, logger)
		next(w, r.WithContext(ctx), owner)
	}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.ledger.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		checks["storage"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	cacheCheck := map[string]any{"status": "disabled"}
	if s.caches != nil {
		cacheCheck = map[string]any{"status": "ok", "entries": s.caches.Entries()}
	}
	checks["cache"] = cacheCheck
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheEntries := 0
	if s.caches != nil {
		cacheEntries = s.caches.Entries()
	}

	w.WriteHeader(http.StatusOK)

	// Prometheus-like text format
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_last_response_time_microseconds Latency of the last completed request\n")
	fmt.Fprintf(w, "# TYPE http_last_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "http_last_response_time_microseconds %d\n\n", traceMetrics.LastResponseTimeUs)

	fmt.Fprintf(w, "# HELP movements_created_total Total number of movements created\n")
	fmt.Fprintf(w, "# TYPE movements_created_total counter\n")
	fmt.Fprintf(w, "movements_created_total %d\n\n", s.movementsCreated.Load())

	fmt.Fprintf(w, "# HELP cache_entries Current aggregate cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries %d\n\n", cacheEntries)

	fmt.Fprintf(w, "# HELP rate_limit_rejected_total Total requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_rejected_total counter\n")
	fmt.Fprintf(w, "rate_limit_rejected_total %d\n\n", rateLimitMetrics.Rejected)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.startedAt).Seconds())
}
