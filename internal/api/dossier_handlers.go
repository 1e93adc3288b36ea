package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/onnwee/sinistra/internal/dossier"
	"github.com/onnwee/sinistra/internal/middleware"
)

// DossierHandlers holds dependencies for dossier HTTP handlers.
type DossierHandlers struct {
	svc *dossier.Service
}

// NewDossierHandlers creates a new DossierHandlers instance.
func NewDossierHandlers(svc *dossier.Service) *DossierHandlers {
	return &DossierHandlers{svc: svc}
}

// CreateDossierRequest represents the request body for creating a dossier.
type CreateDossierRequest struct {
	Titre               string  `json:"titre"`
	DateAccident        string  `json:"date_accident"`
	LieuAccident        *string `json:"lieu_accident,omitempty"`
	DescriptionAccident *string `json:"description_accident,omitempty"`
}

// CreateDossier handles POST /dossiers - opens a new dossier owned by the
// caller as victim.
func (h *DossierHandlers) CreateDossier(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req CreateDossierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	var dateAccident time.Time
	if req.DateAccident != "" {
		var err error
		dateAccident, err = time.Parse(time.RFC3339, req.DateAccident)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "date_accident must be an RFC 3339 timestamp")
			return
		}
	}

	d, err := h.svc.Create(r.Context(), p, dossier.CreateInput{
		Titre:               req.Titre,
		DateAccident:        dateAccident,
		LieuAccident:        req.LieuAccident,
		DescriptionAccident: req.DescriptionAccident,
	})
	if err != nil {
		if errors.Is(err, dossier.ErrValidation) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create dossier")
		return
	}

	WriteJSON(w, http.StatusCreated, d)
}

// ListDossiers handles GET /dossiers - lists the caller's own dossiers.
// The scope is victim-only regardless of role.
func (h *DossierHandlers) ListDossiers(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	dossiers, err := h.svc.List(r.Context(), p)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list dossiers")
		return
	}
	if dossiers == nil {
		dossiers = []*dossier.Dossier{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"dossiers": dossiers})
}

// GetDossier handles GET /dossiers/{id} - returns a dossier with its
// documents and status history nested.
func (h *DossierHandlers) GetDossier(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	id := r.PathValue("id")
	detail, err := h.svc.Get(r.Context(), p, id)
	if err != nil {
		writeDossierError(w, r, err, "Failed to load dossier")
		return
	}

	WriteJSON(w, http.StatusOK, detail)
}

// UpdateDossierRequest represents the request body for a partial update.
// Omitted fields are left untouched.
type UpdateDossierRequest struct {
	Titre               *string `json:"titre,omitempty"`
	DescriptionAccident *string `json:"description_accident,omitempty"`
}

// UpdateDossier handles PATCH /dossiers/{id} - partial update of the two
// mutable fields.
func (h *DossierHandlers) UpdateDossier(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req UpdateDossierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	id := r.PathValue("id")
	d, err := h.svc.Update(r.Context(), p, id, dossier.UpdateInput{
		Titre:               req.Titre,
		DescriptionAccident: req.DescriptionAccident,
	})
	if err != nil {
		writeDossierError(w, r, err, "Failed to update dossier")
		return
	}

	WriteJSON(w, http.StatusOK, d)
}

// writeDossierError maps domain errors to the standard error envelope.
// Shared by the dossier and status handlers.
func writeDossierError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	switch {
	case errors.Is(err, dossier.ErrNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Dossier not found")
	case errors.Is(err, dossier.ErrForbidden):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "You do not have access to this dossier")
	case errors.Is(err, dossier.ErrValidation):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, dossier.ErrConflict):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeConflict)
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Dossier was modified concurrently, retry")
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, internalMsg)
	}
}
