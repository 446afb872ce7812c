// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/agentcost-ai/agentcost-backend/tenant"
)

// Handler provides HTTP handlers for the analytics API.
type Handler struct {
	service *Service
}

// NewHandler creates a new analytics handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers analytics routes with a gorilla/mux router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/analytics/overview", h.GetOverview).Methods("GET")
	r.HandleFunc("/api/v1/analytics/agents", h.GetAgents).Methods("GET")
	r.HandleFunc("/api/v1/analytics/models", h.GetModels).Methods("GET")
	r.HandleFunc("/api/v1/analytics/timeseries", h.GetTimeseries).Methods("GET")
	r.HandleFunc("/api/v1/analytics/full", h.GetFull).Methods("GET")
}

// GetOverview handles GET /api/v1/analytics/overview.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	projectID, window, ok := h.queryContext(w, r)
	if !ok {
		return
	}

	overview, err := h.service.Overview(r.Context(), projectID, window)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, overview)
}

// GetAgents handles GET /api/v1/analytics/agents.
func (h *Handler) GetAgents(w http.ResponseWriter, r *http.Request) {
	projectID, window, ok := h.queryContext(w, r)
	if !ok {
		return
	}

	agents, err := h.service.Agents(r.Context(), projectID, window)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"agents": agents, "count": len(agents)})
}

// GetModels handles GET /api/v1/analytics/models.
func (h *Handler) GetModels(w http.ResponseWriter, r *http.Request) {
	projectID, window, ok := h.queryContext(w, r)
	if !ok {
		return
	}

	models, err := h.service.Models(r.Context(), projectID, window)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"models": models, "count": len(models)})
}

// GetTimeseries handles GET /api/v1/analytics/timeseries. bucket is hour or
// day, defaulting to day.
func (h *Handler) GetTimeseries(w http.ResponseWriter, r *http.Request) {
	projectID, window, ok := h.queryContext(w, r)
	if !ok {
		return
	}

	bucket, err := parseBucket(r.URL.Query().Get("bucket"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.service.Timeseries(r.Context(), projectID, window, bucket)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"timeseries": points, "bucket": string(bucket)})
}

// GetFull handles GET /api/v1/analytics/full.
func (h *Handler) GetFull(w http.ResponseWriter, r *http.Request) {
	projectID, window, ok := h.queryContext(w, r)
	if !ok {
		return
	}

	bucket, err := parseBucket(r.URL.Query().Get("bucket"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.Full(r.Context(), projectID, window, bucket)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, report)
}

// queryContext resolves the principal and the start/end query parameters.
// Missing bounds default to the trailing 30 days.
func (h *Handler) queryContext(w http.ResponseWriter, r *http.Request) (string, Window, bool) {
	principal, ok := tenant.PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(tenant.ScopeRead) {
		writeError(w, "read scope required", http.StatusForbidden)
		return "", Window{}, false
	}

	window, err := parseWindow(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return "", Window{}, false
	}
	return principal.ProjectID, window, true
}

func parseWindow(startRaw, endRaw string) (Window, error) {
	now := time.Now().UTC()
	window := Window{Start: now.AddDate(0, 0, -30), End: now}

	if startRaw != "" {
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return Window{}, errors.New("start must be RFC 3339")
		}
		window.Start = start.UTC()
	}
	if endRaw != "" {
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return Window{}, errors.New("end must be RFC 3339")
		}
		window.End = end.UTC()
	}
	return window, nil
}

func parseBucket(raw string) (Bucket, error) {
	switch raw {
	case "", "day":
		return BucketDay, nil
	case "hour":
		return BucketHour, nil
	default:
		return "", errors.New("bucket must be hour or day")
	}
}

func writeAnalyticsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidWindow), errors.Is(err, ErrWindowTooLarge), errors.Is(err, ErrInvalidGroupBy):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
