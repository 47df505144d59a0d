// Package handler provides HTTP handlers for the REST API.
package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/remiblancher/ocspreq/internal/api/dto"
	apierrors "github.com/remiblancher/ocspreq/internal/api/errors"
)

// HealthHandler handles health and readiness endpoints.
type HealthHandler struct {
	version  string
	services []string
	ready    func() map[string]bool
}

// NewHealthHandler creates a new HealthHandler. ready may be nil.
func NewHealthHandler(version string, services []string, ready func() map[string]bool) *HealthHandler {
	return &HealthHandler{
		version:  version,
		services: services,
		ready:    ready,
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	serviceStatus := make(map[string]string)
	for _, s := range h.services {
		serviceStatus[s] = "ok"
	}

	resp := dto.HealthResponse{
		Status:   "ok",
		Version:  h.version,
		Services: serviceStatus,
	}

	respondJSON(w, http.StatusOK, resp)
}

// Ready handles GET /ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"server": true,
	}
	if h.ready != nil {
		for name, ok := range h.ready() {
			checks[name] = ok
		}
	}

	allReady := true
	for _, ready := range checks {
		if !ready {
			allReady = false
			break
		}
	}

	resp := dto.ReadyResponse{
		Ready:  allReady,
		Checks: checks,
	}

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, resp)
}

// wantsCBOR reports whether the client prefers CBOR over JSON.
func wantsCBOR(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case dto.ContentTypeCBOR:
			return true
		case "application/json", "*/*":
			return false
		}
	}
	return false
}

// respond writes data as CBOR or JSON depending on the Accept header.
func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if !wantsCBOR(r) {
		respondJSON(w, status, data)
		return
	}
	body, err := dto.MarshalCBOR(data)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, &dto.APIError{
			Code:    apierrors.CodeInternal,
			Message: "failed to encode response",
		})
		return
	}
	w.Header().Set("Content-Type", dto.ContentTypeCBOR)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// respondError maps err to a status and API error and writes it.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := apierrors.MapError(err)
	respond(w, r, status, apiErr)
}
