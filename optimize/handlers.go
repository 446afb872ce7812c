// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package optimize

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/agentcost-ai/agentcost-backend/analytics"
	"github.com/agentcost-ai/agentcost-backend/tenant"
)

// Handler provides HTTP handlers for the optimization API.
type Handler struct {
	analyzer *Analyzer
}

// NewHandler creates a new optimization handler.
func NewHandler(analyzer *Analyzer) *Handler {
	return &Handler{analyzer: analyzer}
}

// RegisterRoutes registers optimization routes with a gorilla/mux router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/optimizations", h.GetOptimizations).Methods("GET")
	r.HandleFunc("/api/v1/optimizations/summary", h.GetSummary).Methods("GET")
}

// GetOptimizations handles GET /api/v1/optimizations?days=N.
func (h *Handler) GetOptimizations(w http.ResponseWriter, r *http.Request) {
	principal, ok := tenant.PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(tenant.ScopeRead) {
		writeError(w, "read scope required", http.StatusForbidden)
		return
	}

	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	suggestions, err := h.analyzer.Analyze(r.Context(), principal.ProjectID, days)
	if err != nil {
		writeAnalyzeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"suggestions":   suggestions,
		"count":         len(suggestions),
		"lookback_days": days,
	})
}

// GetSummary handles GET /api/v1/optimizations/summary?days=N.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	principal, ok := tenant.PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(tenant.ScopeRead) {
		writeError(w, "read scope required", http.StatusForbidden)
		return
	}

	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.analyzer.Summary(r.Context(), principal.ProjectID, days)
	if err != nil {
		writeAnalyzeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}

func parseDays(raw string) (int, error) {
	if raw == "" {
		return DefaultLookbackDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, errors.New("days must be a positive integer")
	}
	return days, nil
}

func writeAnalyzeError(w http.ResponseWriter, err error) {
	if errors.Is(err, analytics.ErrWindowTooLarge) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeError(w, err.Error(), http.StatusInternalServerError)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
