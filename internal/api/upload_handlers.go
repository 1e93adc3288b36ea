package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/sinistra/internal/authz"
	"github.com/onnwee/sinistra/internal/document"
	"github.com/onnwee/sinistra/internal/middleware"
	"github.com/onnwee/sinistra/internal/upload"
)

// UploadHandlers holds dependencies for signed upload URL handlers.
type UploadHandlers struct {
	svc   *upload.Service
	cases document.CaseSource
}

// NewUploadHandlers creates a new UploadHandlers instance.
// svc may be nil when object storage is not configured; the endpoint then
// responds 503.
func NewUploadHandlers(svc *upload.Service, cases document.CaseSource) *UploadHandlers {
	return &UploadHandlers{svc: svc, cases: cases}
}

// SignUploadRequest represents the request body for a presigned upload URL.
type SignUploadRequest struct {
	DossierID   string `json:"dossier_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// SignUpload handles POST /uploads/sign.
// Returns a presigned PUT URL for direct upload to object storage. The
// caller must be allowed to upload documents on the target dossier.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	if h.svc == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeInternal, "Object storage is not configured")
		return
	}

	var req SignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.DossierID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "dossier_id is required")
		return
	}

	c, err := h.cases.Case(r.Context(), req.DossierID)
	if err != nil {
		if errors.Is(err, document.ErrDossierNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Dossier not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve dossier")
		return
	}
	if !authz.Authorize(p, authz.DossierRef{VictimeID: c.VictimeID, ExpertID: c.ExpertID}, authz.ActionUploadDocument) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "You may not upload documents to this dossier")
		return
	}

	resp, err := h.svc.GenerateSignedURL(r.Context(), upload.SignedURLRequest{
		DossierID:   req.DossierID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType, "Content type must be application/pdf, image/jpeg or image/png")
		case errors.Is(err, upload.ErrFileTooLarge):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeFileTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, "File size exceeds the maximum allowed")
		case errors.Is(err, upload.ErrInvalidDossierID), errors.Is(err, upload.ErrInvalidFileName):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate signed URL")
		}
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
