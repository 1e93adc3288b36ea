package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/auth"
	"github.com/onnwee/sinistra/internal/authz"
	"github.com/onnwee/sinistra/internal/middleware"
	"github.com/onnwee/sinistra/internal/user"
	"github.com/onnwee/sinistra/internal/validate"
)

// AuthHandlers holds dependencies for authentication HTTP handlers.
type AuthHandlers struct {
	users  user.Repository
	tokens *auth.JWTService
	audits audit.Repository
}

// NewAuthHandlers creates a new AuthHandlers instance.
func NewAuthHandlers(users user.Repository, tokens *auth.JWTService, audits audit.Repository) *AuthHandlers {
	return &AuthHandlers{users: users, tokens: tokens, audits: audits}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// TokenResponse carries a token pair plus the authenticated user.
type TokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         *user.User `json:"user"`
}

// Register handles POST /auth/register.
// Creates an account and returns a token pair. Every account registers
// as VICTIME; expert and admin roles are granted out of band.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "a valid email is required")
		return
	}
	if err := validate.Password(req.Password); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "password must be between 8 and 72 characters")
		return
	}
	req.Email = email

	hash, err := user.HashPassword(req.Password)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to process password")
		return
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         authz.RoleVictime,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.users.Insert(r.Context(), u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeEmailTaken)
			WriteError(w, ctx, http.StatusConflict, ErrCodeEmailTaken, "Email already registered")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create user")
		return
	}

	h.recordAudit(r, u, audit.ActionRegister)

	h.writeTokenPair(w, r, u, http.StatusCreated)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
// Verifies credentials and returns a token pair. Unknown email and wrong
// password produce the same response so accounts cannot be enumerated.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid email or password")
		return
	}
	if err := u.CheckPassword(req.Password); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid email or password")
		return
	}

	h.recordAudit(r, u, audit.ActionLogin)

	h.writeTokenPair(w, r, u, http.StatusOK)
}

// RefreshRequest represents the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh.
// Exchanges a valid refresh token for a new token pair.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.RefreshToken == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "refresh_token is required")
		return
	}

	claims, err := h.tokens.ValidateToken(req.RefreshToken)
	if err != nil || claims.Type != auth.TokenTypeRefresh {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired refresh token")
		return
	}

	// Re-read the user so a role change takes effect on the next access token.
	u, err := h.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Unknown user")
		return
	}

	h.writeTokenPair(w, r, u, http.StatusOK)
}

// writeTokenPair issues both tokens for a user and writes the response.
func (h *AuthHandlers) writeTokenPair(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	access, err := h.tokens.GenerateAccessToken(u.ID, u.Role)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate token")
		return
	}
	refresh, err := h.tokens.GenerateRefreshToken(u.ID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate token")
		return
	}

	WriteJSON(w, status, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         u,
	})
}

// recordAudit appends an auth audit row. Auth operations are not wrapped
// in a transaction with the user write, so a failed append is logged by
// the repository rather than failing the request.
func (h *AuthHandlers) recordAudit(r *http.Request, u *user.User, action string) {
	_, _ = h.audits.Append(r.Context(), audit.Entry{
		UserID:       u.ID,
		UserRole:     string(u.Role),
		Action:       action,
		ResourceType: audit.ResourceUser,
		ResourceID:   u.ID,
		Details:      map[string]any{"email": u.Email},
	})
}

// principalFrom extracts the authenticated principal placed in the
// context by the auth middleware.
func principalFrom(r *http.Request) (authz.Principal, bool) {
	id := middleware.GetUserID(r.Context())
	role := authz.Role(middleware.GetUserRole(r.Context()))
	if id == "" || !role.Valid() {
		return authz.Principal{}, false
	}
	return authz.Principal{ID: id, Role: role}, true
}
