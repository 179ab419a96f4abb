package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.started).Round(time.Second).String(),
	})
}

// handleReady runs every registered readiness check with a shared deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	if s.limiter != nil {
		checks["rate_limiter"] = map[string]any{
			"active_clients": s.limiter.ActiveClients(),
			"status":         "ok",
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.tracer.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	counter(w, "http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter(w, "http_client_errors_total", "Responses with a 4xx status", traceMetrics.ClientErrors)
	counter(w, "http_server_errors_total", "Responses with a 5xx status", traceMetrics.ServerErrors)
	gauge(w, "http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)

	counter(w, "sign_ins_total", "Successful sign-ins", s.appMetrics.signIns.Load())
	counter(w, "sign_in_failures_total", "Rejected sign-ins", s.appMetrics.signInFailures.Load())
	counter(w, "sessions_expired_total", "Sessions ended because the API token expired", s.appMetrics.expired.Load())
	counter(w, "transactions_deleted_total", "Transactions removed through bulk delete", s.appMetrics.deleted.Load())
	counter(w, "exports_total", "Account views exported", s.appMetrics.exports.Load())
	counter(w, "renders_total", "Templates rendered", s.appMetrics.renders.Load())

	if s.cacheStats != nil {
		stats := s.cacheStats()
		names := make([]string, 0, len(stats))
		for name := range stats {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
		fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
		for _, name := range names {
			fmt.Fprintf(w, "cache_entries{cache=%q} %d\n", name, stats[name].Size)
		}
		fmt.Fprintf(w, "\n# HELP cache_hits_total Total cache hits\n")
		fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
		for _, name := range names {
			fmt.Fprintf(w, "cache_hits_total{cache=%q} %d\n", name, stats[name].Hits)
		}
		fmt.Fprintf(w, "\n# HELP cache_misses_total Total cache misses\n")
		fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
		for _, name := range names {
			fmt.Fprintf(w, "cache_misses_total{cache=%q} %d\n", name, stats[name].Misses)
		}
		fmt.Fprintf(w, "\n# HELP cache_evictions_total Total cache evictions\n")
		fmt.Fprintf(w, "# TYPE cache_evictions_total counter\n")
		for _, name := range names {
			fmt.Fprintf(w, "cache_evictions_total{cache=%q} %d\n", name, stats[name].Evictions)
		}
		fmt.Fprintln(w)
	}

	if s.limiter != nil {
		rl := s.limiter.GetMetrics()
		counter(w, "rate_limit_rejections_total", "Requests rejected by the rate limiter", rl.Rejected)
		gauge(w, "active_rate_limit_clients", "Currently tracked rate limit clients", rl.ClientCount)
	}

	counter(w, "suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	counter(w, "blocked_probes_total", "Requests answered 404 as scanner probes", securityMetrics.BlockedProbes)
	counter(w, "invalid_ip_attempts_total", "Unparseable forwarded client addresses", securityMetrics.InvalidIPAttempts)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", time.Since(s.appMetrics.started).Seconds())
}

func counter(w http.ResponseWriter, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
}

func gauge(w http.ResponseWriter, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
}
