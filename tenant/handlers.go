// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Handler provides HTTP handlers for project provisioning.
type Handler struct {
	repo Repository
	auth *Authenticator
}

// NewHandler creates a new tenant handler.
func NewHandler(repo Repository, auth *Authenticator) *Handler {
	return &Handler{repo: repo, auth: auth}
}

// RegisterRoutes registers project routes with a gorilla/mux router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/projects", h.CreateProject).Methods("POST")
	r.HandleFunc("/api/v1/projects/{id}", h.GetProject).Methods("GET")
	r.HandleFunc("/api/v1/projects/{id}", h.UpdateProject).Methods("PATCH")
	r.HandleFunc("/api/v1/projects/{id}/keys", h.CreateKey).Methods("POST")
	r.HandleFunc("/api/v1/projects/{id}/keys/{keyID}", h.RevokeKey).Methods("DELETE")
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateProject handles POST /api/v1/projects. Requires admin scope; the
// response includes the first API key in plaintext, shown exactly once.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(ScopeAdmin) {
		writeError(w, "admin scope required", http.StatusForbidden)
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project := &Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.repo.CreateProject(r.Context(), project); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	plaintext, key, err := h.auth.IssueKey(r.Context(), project.ID, "default")
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"project": project,
		"api_key": plaintext,
		"key_id":  key.ID,
	})
}

// GetProject handles GET /api/v1/projects/{id}. A project principal may
// only read itself.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	if id != principal.ProjectID && !principal.HasScope(ScopeAdmin) {
		writeError(w, ErrProjectNotFound.Error(), http.StatusForbidden)
		return
	}

	project, err := h.repo.GetProject(r.Context(), id)
	if err != nil {
		if err == ErrProjectNotFound {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(project)
}

// UpdateProject handles PATCH /api/v1/projects/{id}. Partial update of
// name, description and active flag; admin scope only.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(ScopeAdmin) {
		writeError(w, "admin scope required", http.StatusForbidden)
		return
	}

	id := mux.Vars(r)["id"]
	existing, err := h.repo.GetProject(r.Context(), id)
	if err != nil {
		if err == ErrProjectNotFound {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var update struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if update.Name != nil && *update.Name != "" {
		existing.Name = *update.Name
	}
	if update.Description != nil {
		existing.Description = *update.Description
	}
	if update.IsActive != nil {
		existing.IsActive = *update.IsActive
	}

	if err := h.repo.UpdateProject(r.Context(), existing); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(existing)
}

// CreateKey handles POST /api/v1/projects/{id}/keys.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(ScopeAdmin) {
		writeError(w, "admin scope required", http.StatusForbidden)
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := h.repo.GetProject(r.Context(), id); err != nil {
		if err == ErrProjectNotFound {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Name == "" {
		req.Name = "unnamed"
	}

	plaintext, key, err := h.auth.IssueKey(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"api_key": plaintext,
		"key_id":  key.ID,
		"name":    key.Name,
	})
}

// RevokeKey handles DELETE /api/v1/projects/{id}/keys/{keyID}.
func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || !principal.HasScope(ScopeAdmin) {
		writeError(w, "admin scope required", http.StatusForbidden)
		return
	}

	keyID := mux.Vars(r)["keyID"]
	if err := h.repo.RevokeAPIKey(r.Context(), keyID); err != nil {
		if err == ErrUnauthorized {
			writeError(w, "key not found", http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
