package api

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/sinistra/internal/dossier"
	"github.com/onnwee/sinistra/internal/middleware"
)

// StatusHandlers holds dependencies for status transition HTTP handlers.
type StatusHandlers struct {
	svc *dossier.Service
}

// NewStatusHandlers creates a new StatusHandlers instance.
func NewStatusHandlers(svc *dossier.Service) *StatusHandlers {
	return &StatusHandlers{svc: svc}
}

// ChangeStatusRequest represents the request body for a status transition.
type ChangeStatusRequest struct {
	NouveauStatut    string  `json:"nouveau_statut"`
	RaisonChangement *string `json:"raison_changement,omitempty"`
}

// ChangeStatus handles POST /dossiers/{id}/status.
// Only the assigned expert or an admin may transition a dossier.
func (h *StatusHandlers) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	id := r.PathValue("id")
	d, err := h.svc.ChangeStatus(r.Context(), p, id, dossier.Status(req.NouveauStatut), req.RaisonChangement)
	if err != nil {
		writeDossierError(w, r, err, "Failed to change status")
		return
	}

	WriteJSON(w, http.StatusOK, d)
}

// StatusHistory handles GET /dossiers/{id}/status-history.
// Readable by the victim, the assigned expert, or an admin.
func (h *StatusHandlers) StatusHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	id := r.PathValue("id")
	history, err := h.svc.StatusHistory(r.Context(), p, id)
	if err != nil {
		writeDossierError(w, r, err, "Failed to load status history")
		return
	}
	if history == nil {
		history = []*dossier.StatusHistory{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"status_history": history})
}
