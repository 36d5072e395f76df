package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"qcdash/internal/core"
	qclog "qcdash/internal/log"
	"qcdash/internal/table"
)

const refreshTimeout = 30 * time.Second

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard.Dashboard(filter))
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard.FilterOptions())
}

func (s *Server) handleListInspections(w http.ResponseWriter, r *http.Request) {
	p := ParseTableParams(r.URL.Query())
	writeJSON(w, http.StatusOK, table.Build(s.dashboard.Records(), p.Query, p.Page, p.PerPage))
}

// handleGetInspection serves one record from the snapshot for the edit form.
func (s *Server) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.dashboard.Record(strings.TrimSpace(r.PathValue("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "inspection not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateInspection(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeInspection(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.inspections.Create(r.Context(), rec)
	if err != nil {
		s.writeFailure(r.Context(), w, err, qclog.OpCreate, rec)
		return
	}
	s.structured.LogInspectionWritten(r.Context(), qclog.OpCreate, saved.ID, saved.InspectionID, saved.InspectorName)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateInspection(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	rec, err := decodeInspection(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.inspections.Update(r.Context(), id, rec)
	if err != nil {
		rec.ID = id
		s.writeFailure(r.Context(), w, err, qclog.OpUpdate, rec)
		return
	}
	s.structured.LogInspectionWritten(r.Context(), qclog.OpUpdate, saved.ID, saved.InspectionID, saved.InspectorName)
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteInspection(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := s.inspections.Delete(r.Context(), id); err != nil {
		s.writeFailure(r.Context(), w, err, qclog.OpDelete, core.InspectionRecord{ID: id})
		return
	}
	s.structured.LogInspectionWritten(r.Context(), qclog.OpDelete, id, "", "")
	w.WriteHeader(http.StatusNoContent)
}

// writeFailure logs a failed write and answers with the mapped status.
// Validation failures are the caller's problem and logged at warn level.
func (s *Server) writeFailure(ctx context.Context, w http.ResponseWriter, err error, op string, rec core.InspectionRecord) {
	fields := qclog.NewFields().WithInspection(rec.ID, rec.InspectionID, rec.InspectorName)
	if status := statusForError(err); status == http.StatusUnprocessableEntity || status == http.StatusNotFound {
		qclog.FromContext(ctx).WarnContext(ctx, "Inspection write rejected",
			fields.WithError(err).WithOperation(op).ToSlice()...)
	} else {
		s.structured.LogError(ctx, "Inspection write failed", err, op, fields)
	}
	writeServiceError(w, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	st, err := s.dashboard.Refresh(ctx)
	if err != nil {
		s.structured.LogError(ctx, "Manual refresh failed", err, qclog.OpRefresh, nil)
		writeJSON(w, statusForError(err), map[string]any{
			"error":  "refresh failed: " + err.Error(),
			"status": st,
		})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once a snapshot has been loaded. A failed
// refresh after that only shows up in the checks.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	st := s.dashboard.Status()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	snapshot := map[string]any{
		"generation": st.Generation,
		"count":      st.Count,
	}
	if !st.FetchedAt.IsZero() {
		snapshot["fetched_at"] = st.FetchedAt.Format(time.RFC3339)
	}
	if st.LastError != "" {
		snapshot["last_error"] = st.LastError
		snapshot["last_error_at"] = st.LastErrorAt.Format(time.RFC3339)
	}
	if st.Ready() {
		snapshot["status"] = "ok"
	} else {
		snapshot["status"] = "not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}
	checks["snapshot"] = snapshot

	if s.amqpEnabled {
		checks["amqp"] = "configured"
	} else {
		checks["amqp"] = "disabled"
	}
	if s.hub != nil {
		checks["websocket"] = map[string]any{"clients": s.hub.Clients()}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	st := s.dashboard.Status()
	traceMetrics := s.tracer.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("qcdash_http_requests_total", "counter", "Total HTTP requests served", traceMetrics.TotalRequests)
	metric("qcdash_http_server_errors_total", "counter", "HTTP responses with a 5xx status", traceMetrics.ServerErrors)
	metric("qcdash_http_requests_in_flight", "gauge", "HTTP requests currently being served", traceMetrics.InFlight)
	metric("qcdash_http_response_time_avg_microseconds", "gauge", "Average HTTP response time", traceMetrics.AverageResponseTime)

	metric("qcdash_snapshot_generation", "gauge", "Generation of the served inspection snapshot", st.Generation)
	metric("qcdash_snapshot_records", "gauge", "Records in the served snapshot", st.Count)
	metric("qcdash_refreshes_total", "counter", "Applied snapshot refreshes", st.Refreshes)
	metric("qcdash_refresh_failures_total", "counter", "Failed snapshot refreshes", st.Failures)
	metric("qcdash_refresh_stale_total", "counter", "Fetch results discarded as superseded", st.Stale)

	if s.views != nil {
		cs := s.views.Stats()
		metric("qcdash_view_cache_hits_total", "counter", "Dashboard view cache hits", cs.Hits)
		metric("qcdash_view_cache_misses_total", "counter", "Dashboard view cache misses", cs.Misses)
		metric("qcdash_view_cache_evictions_total", "counter", "Dashboard view cache evictions", cs.Evictions)
		metric("qcdash_view_cache_entries", "gauge", "Dashboard views currently cached", cs.Size)
	}

	if s.events != nil {
		processed, failed := s.events.Stats()
		metric("qcdash_push_events_processed_total", "counter", "Change events that refreshed the snapshot", processed)
		metric("qcdash_push_events_failed_total", "counter", "Change events whose refresh failed", failed)
	}

	metric("qcdash_rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric("qcdash_rate_limit_clients", "gauge", "Clients tracked by the rate limiter", rateLimitMetrics.ClientCount)
	metric("qcdash_suspicious_requests_total", "counter", "Requests blocked as probes", securityMetrics.SuspiciousRequests)

	if s.hub != nil {
		metric("qcdash_websocket_clients", "gauge", "Connected websocket clients", s.hub.Clients())
	}
	metric("qcdash_uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.started).Seconds()))
}
