package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/commune/backend/internal/db"
	"github.com/commune/backend/internal/logging"
	"github.com/commune/backend/internal/middleware"
	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/services"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	accounts     *services.AccountService
	auth         *services.AuthService
	cookieSecure bool
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(accounts *services.AccountService, auth *services.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{accounts: accounts, auth: auth, cookieSecure: cookieSecure}
}

func toUserResponse(u db.User) models.UserResponse {
	return models.UserResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// Register creates a USER account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		writeServiceError(r.Context(), w, err, "")
		return
	}

	writeJSON(w, http.StatusCreated, models.MessageResponse{Message: "account created"})
}

// Login checks credentials and issues a session token, both in the body
// and as an HttpOnly cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadCredentials, "login failed")
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to log in", err)
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Name, services.Role(user.Role))
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.TokenDuration() / time.Second),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// Logout clears the session cookie. Tokens are stateless, so a copied
// Bearer token stays valid until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
