// Package middleware provides HTTP middleware for authentication, authorization,
// CORS handling, rate limiting, metrics, and request context management.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/commune/backend/internal/logging"
	"github.com/commune/backend/internal/services"
)

type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"

	// SessionCookie carries the JWT for browser clients, including
	// EventSource connections that cannot set headers.
	SessionCookie = "commune_session"
)

// AuthMiddleware validates the session cookie or a Bearer token and adds the
// claims to the request context. Returns 401 for missing/invalid tokens.
func AuthMiddleware(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokenFromRequest(w, r)
			if !ok {
				return
			}

			claims, err := authService.ValidateToken(token)
			if err != nil {
				logging.LogSecurityEvent(r.Context(), logging.SecurityEventInvalidJWT, "invalid or expired token")
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = logging.UpdateRequestAttrs(ctx, claims.UserID(), string(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest prefers the Authorization header and falls back to the
// session cookie. It writes the 401 itself when neither is usable.
func tokenFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventInvalidAuthFmt, "invalid authorization header format")
			http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
			return "", false
		}
		return parts[1], true
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	logging.LogSecurityEvent(r.Context(), logging.SecurityEventMissingAuth, "missing credentials")
	http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
	return "", false
}

// AdminOnlyMiddleware restricts access to admin users only.
// Must be used after AuthMiddleware. Returns 403 for non-admin users.
func AdminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(ClaimsKey).(*services.Claims)
		if !ok || claims.Role != services.RoleAdmin {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventNonAdminAccess, "admin access required")
			http.Error(w, `{"error":"admin access required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaims retrieves the JWT claims from the request context.
// Returns nil if no claims are present (e.g., unauthenticated request).
func GetClaims(ctx context.Context) *services.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*services.Claims)
	return claims
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
