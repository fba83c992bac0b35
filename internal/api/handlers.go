// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package api serves the alert log to the review frontend.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/screener"
	"github.com/kuomat/Traffic-Slice/internal/store"
)

// AlertStore is the query surface the handlers need.
type AlertStore interface {
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]*store.Alert, error)
	CountAlerts(ctx context.Context, filter store.AlertFilter) (int64, error)
	GetAlert(ctx context.Context, id int64) (*store.Alert, error)
	HTTPRequestsForAlert(ctx context.Context, alertID int64) ([]*store.HTTPRequestRecord, error)
	TCPMessagesForAlert(ctx context.Context, alertID int64) ([]*store.TCPMessageRecord, error)
}

// Handlers holds the HTTP handlers for the alert API.
type Handlers struct {
	alerts AlertStore
}

// NewHandlers creates handlers over the given store.
func NewHandlers(alerts AlertStore) *Handlers {
	return &Handlers{alerts: alerts}
}

// writeJSON encodes data as JSON. Encode errors are logged only; headers
// are already sent.
func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

// writeJSONStatus encodes data as JSON with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// respondError writes a JSON error envelope.
func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		logging.Error().Err(err).Int("status", status).Msg(message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(map[string]string{"error": message}); encErr != nil {
		logging.Error().Err(encErr).Msg("failed to encode error response")
	}
}

// parseAlertFilter reads the alert filter surface from query parameters.
func parseAlertFilter(r *http.Request) store.AlertFilter {
	q := r.URL.Query()

	filter := store.AlertFilter{Limit: 100}

	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if v := q.Get("severity"); v != "" {
		if sev, err := strconv.Atoi(v); err == nil {
			filter.Severity = sev
		}
	}

	filter.AlertName = q.Get("alert_name")
	filter.MessageContains = q.Get("message")
	filter.ApplicationFrom = q.Get("application_from")
	filter.DestinationDomain = q.Get("destination_domain")
	filter.Type = screener.AlertType(q.Get("type"))
	filter.OrderBy = q.Get("order_by")
	filter.OrderDir = q.Get("order_dir")

	return filter
}

// ListAlerts handles GET /api/v1/alerts.
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := parseAlertFilter(r)

	if filter.Type != "" && !filter.Type.Valid() {
		respondError(w, http.StatusBadRequest, "invalid alert type", nil)
		return
	}

	alerts, err := h.alerts.ListAlerts(ctx, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch alerts", err)
		return
	}

	// Count is best effort; pagination still works from the page itself.
	total, err := h.alerts.CountAlerts(ctx, filter)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to count alerts")
		total = int64(len(alerts))
	}

	if alerts == nil {
		alerts = []*store.Alert{}
	}
	writeJSON(w, map[string]interface{}{
		"alerts": alerts,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// CountAlerts handles GET /api/v1/alerts/count.
func (h *Handlers) CountAlerts(w http.ResponseWriter, r *http.Request) {
	count, err := h.alerts.CountAlerts(r.Context(), parseAlertFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count alerts", err)
		return
	}
	writeJSON(w, map[string]int64{"count": count})
}

// GetAlert handles GET /api/v1/alerts/{id}. The response includes the
// traffic linked to the alert.
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid alert id", err)
		return
	}

	alert, err := h.alerts.GetAlert(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch alert", err)
		return
	}
	if alert == nil {
		respondError(w, http.StatusNotFound, "alert not found", nil)
		return
	}

	requests, err := h.alerts.HTTPRequestsForAlert(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch linked traffic", err)
		return
	}
	messages, err := h.alerts.TCPMessagesForAlert(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch linked traffic", err)
		return
	}

	if requests == nil {
		requests = []*store.HTTPRequestRecord{}
	}
	if messages == nil {
		messages = []*store.TCPMessageRecord{}
	}
	writeJSON(w, map[string]interface{}{
		"alert":         alert,
		"http_requests": requests,
		"tcp_messages":  messages,
	})
}

// Health handles GET /api/v1/health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
