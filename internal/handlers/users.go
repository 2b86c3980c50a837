package handlers

import (
	"errors"
	"net/http"

	"github.com/commune/backend/internal/logging"
	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/services"
)

// UserHandler serves the caller's profile and the user directory.
type UserHandler struct {
	accounts *services.AccountService
	session  *AuthHandler
}

// NewUserHandler creates a UserHandler. session is used to clear the cookie
// when the caller deletes their account.
func NewUserHandler(accounts *services.AccountService, session *AuthHandler) *UserHandler {
	return &UserHandler{accounts: accounts, session: session}
}

// Me returns the caller's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Get(r.Context(), currentUserID(r))
	if errors.Is(err, services.ErrNotFound) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventDeletedIdentity, "token for deleted account")
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateMe changes the caller's name and/or password.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.accounts.Update(r.Context(), currentUserID(r), services.AccountUpdate{
		Name:     req.Name,
		Password: req.Password,
	})
	if errors.Is(err, services.ErrNotFound) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventDeletedIdentity, "token for deleted account")
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		writeServiceError(r.Context(), w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteMe removes the caller's account and ends the session.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Delete(r.Context(), currentUserID(r)); err != nil {
		writeServiceError(r.Context(), w, err, "user not found")
		return
	}
	h.session.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// List returns every user's id and name for starting conversations.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context())
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	resp := make([]models.UserSummaryResponse, len(users))
	for i, u := range users {
		resp[i] = models.UserSummaryResponse{ID: u.ID, Name: u.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}
