package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/sinistra/internal/document"
	"github.com/onnwee/sinistra/internal/middleware"
)

// DocumentHandlers holds dependencies for document HTTP handlers.
type DocumentHandlers struct {
	svc *document.Service
}

// NewDocumentHandlers creates a new DocumentHandlers instance.
func NewDocumentHandlers(svc *document.Service) *DocumentHandlers {
	return &DocumentHandlers{svc: svc}
}

// UploadDocumentRequest represents the request body for registering an
// uploaded document on a dossier. The file content itself goes directly
// to object storage via a presigned URL; this endpoint records metadata.
type UploadDocumentRequest struct {
	FileName      string  `json:"file_name"`
	FileType      *string `json:"file_type,omitempty"`
	FileSizeBytes *int64  `json:"file_size_bytes,omitempty"`
	LocatorURL    *string `json:"locator_url,omitempty"`
}

// UploadDocument handles POST /dossiers/{id}/documents.
func (h *DocumentHandlers) UploadDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req UploadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	dossierID := r.PathValue("id")
	doc, err := h.svc.Upload(r.Context(), p, dossierID, document.UploadInput{
		FileName:      req.FileName,
		FileType:      req.FileType,
		FileSizeBytes: req.FileSizeBytes,
		LocatorURL:    req.LocatorURL,
	})
	if err != nil {
		h.writeDocumentError(w, r, err, "Failed to register document")
		return
	}

	WriteJSON(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /dossiers/{id}/documents.
// Soft-deleted documents are excluded.
func (h *DocumentHandlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	dossierID := r.PathValue("id")
	docs, err := h.svc.List(r.Context(), p, dossierID)
	if err != nil {
		h.writeDocumentError(w, r, err, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []*document.Document{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// DeleteDocument handles DELETE /documents/{id}.
// The row is soft-deleted; it stays in storage for the audit trail.
func (h *DocumentHandlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	id := r.PathValue("id")
	if err := h.svc.Delete(r.Context(), p, id); err != nil {
		h.writeDocumentError(w, r, err, "Failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeDocumentError maps domain errors to the standard error envelope.
func (h *DocumentHandlers) writeDocumentError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	switch {
	case errors.Is(err, document.ErrDossierNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Dossier not found")
	case errors.Is(err, document.ErrNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Document not found")
	case errors.Is(err, document.ErrForbidden):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "You do not have access to this document")
	case errors.Is(err, document.ErrValidation):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, internalMsg)
	}
}
