package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/onnwee/sinistra/internal/auth"
)

// TokenValidator validates an access token and returns its claims.
// Implemented by auth.JWTService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// authError mirrors the handler error envelope so unauthenticated
// responses look the same as handler errors.
type authError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	var body authError
	body.Error.Code = "unauthorized"
	body.Error.Message = message
	_ = json.NewEncoder(w).Encode(body)
}

// RequireAuth is a middleware that rejects requests without a valid access
// token. It expects an Authorization header of the form "Bearer <token>",
// validates the token, and stores the user ID and role in the context for
// handlers and the logging middleware.
//
// Refresh tokens are rejected here; they are only accepted by the refresh
// endpoint itself.
func RequireAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				r = r.WithContext(SetErrorCode(r.Context(), "unauthorized"))
				writeAuthError(w, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				r = r.WithContext(SetErrorCode(r.Context(), "unauthorized"))
				writeAuthError(w, "invalid authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				r = r.WithContext(SetErrorCode(r.Context(), "unauthorized"))
				writeAuthError(w, "invalid or expired token")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				r = r.WithContext(SetErrorCode(r.Context(), "unauthorized"))
				writeAuthError(w, "access token required")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			ctx = SetUserRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
