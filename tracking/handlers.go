// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agentcost-ai/agentcost-backend/tenant"
)

// Handler provides HTTP handlers for event ingestion.
type Handler struct {
	service *Service
}

// NewHandler creates a new tracking handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers ingestion routes with a gorilla/mux router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/events", h.IngestEvents).Methods("POST")
}

// IngestRequest is the batch ingest request body. A bare JSON array is also
// accepted for SDK convenience.
type IngestRequest struct {
	Events []EventInput `json:"events"`
}

// IngestEvents handles POST /api/v1/events.
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	principal, ok := tenant.PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(tenant.ScopeIngest) {
		writeError(w, "ingest scope required", http.StatusForbidden)
		return
	}

	inputs, err := decodeBatch(r)
	if err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.IngestBatch(r.Context(), principal.ProjectID, inputs)
	if err != nil {
		switch {
		case errors.Is(err, ErrTenantMismatch):
			writeError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, ErrValidation), errors.Is(err, ErrBatchTooLarge):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrStorageUnavailable):
			writeError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	status := http.StatusOK
	if len(result.Rejected) > 0 {
		status = http.StatusMultiStatus
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

func decodeBatch(r *http.Request) ([]EventInput, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	var req IngestRequest
	if err := json.Unmarshal(body, &req); err == nil && req.Events != nil {
		return req.Events, nil
	}

	var bare []EventInput
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	return nil, errors.New("invalid batch payload")
}

// maxBodyBytes caps an ingest request body at 10 MiB.
const maxBodyBytes = 10 << 20

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
