package api

import (
	"net/http"
	"strconv"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/authz"
	"github.com/onnwee/sinistra/internal/middleware"
)

// Audit log pagination defaults and bounds.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// AuditHandlers holds dependencies for audit log HTTP handlers.
type AuditHandlers struct {
	repo audit.Repository
}

// NewAuditHandlers creates a new AuditHandlers instance.
func NewAuditHandlers(repo audit.Repository) *AuditHandlers {
	return &AuditHandlers{repo: repo}
}

// AuditLogsResponse represents the paginated audit log listing.
type AuditLogsResponse struct {
	Logs   []*audit.AuditLog `json:"logs"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ListLogs handles GET /logs - admin-only paginated audit trail,
// newest-first.
func (h *AuditHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}
	if !authz.Authorize(p, authz.DossierRef{}, authz.ActionListAuditLogs) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Audit logs are restricted to administrators")
		return
	}

	limit := DefaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		if parsed > MaxAuditLimit {
			parsed = MaxAuditLimit
		}
		limit = parsed
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	logs, total, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list audit logs")
		return
	}
	if logs == nil {
		logs = []*audit.AuditLog{}
	}

	WriteJSON(w, http.StatusOK, AuditLogsResponse{
		Logs:   logs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
