package api

import (
	"net/http"

	"github.com/onnwee/sinistra/internal/middleware"
)

// RouterConfig carries the handlers and cross-cutting dependencies the
// router wires together.
type RouterConfig struct {
	Auth      *AuthHandlers
	Dossiers  *DossierHandlers
	Status    *StatusHandlers
	Documents *DocumentHandlers
	Audits    *AuditHandlers
	Uploads   *UploadHandlers
	Health    *HealthHandlers

	// TokenValidator guards every route below /auth.
	TokenValidator middleware.TokenValidator

	// RateLimitStore backs the per-group rate limiters. Nil disables
	// rate limiting (tests).
	RateLimitStore middleware.RateLimitStore

	// MetricsHandler serves GET /metrics (usually promhttp.Handler()).
	// Nil disables the endpoint.
	MetricsHandler http.Handler
}

// NewRouter builds the HTTP route table. Method and path-parameter
// matching use the net/http pattern syntax.
//
// Auth endpoints are rate limited by client IP since there is no
// authenticated user yet; everything else is limited per user.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.RequireAuth(cfg.TokenValidator)

	identity := func(next http.Handler) http.Handler { return next }
	authLimit := identity
	uploadLimit := identity
	if cfg.RateLimitStore != nil {
		authLimit = middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultAuthLimit(), middleware.IPKeyFunc())
		uploadLimit = middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultUploadLimit(), middleware.UserKeyFunc())
	}

	// Public auth endpoints
	mux.Handle("POST /auth/register", authLimit(http.HandlerFunc(cfg.Auth.Register)))
	mux.Handle("POST /auth/login", authLimit(http.HandlerFunc(cfg.Auth.Login)))
	mux.Handle("POST /auth/refresh", authLimit(http.HandlerFunc(cfg.Auth.Refresh)))

	// Dossier lifecycle
	mux.Handle("POST /dossiers", requireAuth(http.HandlerFunc(cfg.Dossiers.CreateDossier)))
	mux.Handle("GET /dossiers", requireAuth(http.HandlerFunc(cfg.Dossiers.ListDossiers)))
	mux.Handle("GET /dossiers/{id}", requireAuth(http.HandlerFunc(cfg.Dossiers.GetDossier)))
	mux.Handle("PATCH /dossiers/{id}", requireAuth(http.HandlerFunc(cfg.Dossiers.UpdateDossier)))

	// Status transitions
	mux.Handle("POST /dossiers/{id}/status", requireAuth(http.HandlerFunc(cfg.Status.ChangeStatus)))
	mux.Handle("GET /dossiers/{id}/status-history", requireAuth(http.HandlerFunc(cfg.Status.StatusHistory)))

	// Document registry
	mux.Handle("POST /dossiers/{id}/documents", requireAuth(http.HandlerFunc(cfg.Documents.UploadDocument)))
	mux.Handle("GET /dossiers/{id}/documents", requireAuth(http.HandlerFunc(cfg.Documents.ListDocuments)))
	mux.Handle("DELETE /documents/{id}", requireAuth(http.HandlerFunc(cfg.Documents.DeleteDocument)))

	// Audit trail (admin only, enforced in the handler)
	mux.Handle("GET /logs", requireAuth(http.HandlerFunc(cfg.Audits.ListLogs)))

	// Presigned uploads
	mux.Handle("POST /uploads/sign", requireAuth(uploadLimit(http.HandlerFunc(cfg.Uploads.SignUpload))))

	// Probes and metrics
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	return mux
}
