// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package pricing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/agentcost-ai/agentcost-backend/tenant"
)

// Handler provides HTTP handlers for the pricing API.
type Handler struct {
	service *Service
}

// NewHandler creates a new pricing handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers pricing routes with a gorilla/mux router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/pricing", h.ListPricing).Methods("GET")
	r.HandleFunc("/api/v1/pricing", h.UpdatePricing).Methods("POST")
	r.HandleFunc("/api/v1/pricing/sync", h.SyncPricing).Methods("POST")
}

// ListPricing handles GET /api/v1/pricing. With ?model= it returns the full
// quote history for that model, newest first; without it, the current quote
// of every model.
func (h *Handler) ListPricing(w http.ResponseWriter, r *http.Request) {
	if _, ok := tenant.PrincipalFromContext(r.Context()); !ok {
		writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	model := r.URL.Query().Get("model")
	if model != "" {
		quotes, err := h.service.ListQuotes(r.Context(), model)
		if err != nil {
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"model":  model,
			"quotes": quotes,
		})
		return
	}

	current := make([]PriceQuote, 0)
	for _, m := range h.service.Models() {
		if q, err := h.service.Resolve(m, timeNow()); err == nil {
			current = append(current, *q)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pricing": current,
		"count":   len(current),
	})
}

// UpdatePricingRequest is the request body for a price override.
type UpdatePricingRequest struct {
	Model       string `json:"model"`
	Provider    string `json:"provider,omitempty"`
	InputPer1K  string `json:"input_per_1k"`
	OutputPer1K string `json:"output_per_1k"`
	Currency    string `json:"currency,omitempty"`
	Tier        string `json:"tier,omitempty"`
}

// UpdatePricing handles POST /api/v1/pricing. Admin scope only; the new
// quote takes effect immediately and is marked as an override so defaults
// syncs leave it alone.
func (h *Handler) UpdatePricing(w http.ResponseWriter, r *http.Request) {
	principal, ok := tenant.PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(tenant.ScopeAdmin) {
		writeError(w, "admin scope required", http.StatusForbidden)
		return
	}

	var req UpdatePricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quote, err := quoteFromRequest(&req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateQuote(r.Context(), quote); err != nil {
		switch err {
		case ErrInvalidQuote:
			writeError(w, err.Error(), http.StatusBadRequest)
		case ErrQuoteOverlap:
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// SyncPricing handles POST /api/v1/pricing/sync. Admin scope only.
func (h *Handler) SyncPricing(w http.ResponseWriter, r *http.Request) {
	principal, ok := tenant.PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(tenant.ScopeAdmin) {
		writeError(w, "admin scope required", http.StatusForbidden)
		return
	}

	result, err := h.service.SyncDefaults(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func quoteFromRequest(req *UpdatePricingRequest) (*PriceQuote, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	input, err := decimal.NewFromString(req.InputPer1K)
	if err != nil {
		return nil, fmt.Errorf("invalid input_per_1k: %w", err)
	}
	output, err := decimal.NewFromString(req.OutputPer1K)
	if err != nil {
		return nil, fmt.Errorf("invalid output_per_1k: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	return &PriceQuote{
		Model:       req.Model,
		Provider:    req.Provider,
		InputPer1K:  input,
		OutputPer1K: output,
		Currency:    currency,
		Tier:        ModelTier(req.Tier),
	}, nil
}

func timeNow() time.Time {
	return time.Now().UTC()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
