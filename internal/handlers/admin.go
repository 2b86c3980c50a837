package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/services"
)

// AdminHandler serves the moderation panel. Every route is admin only.
type AdminHandler struct {
	accounts *services.AccountService
	posts    *services.PostService
}

func NewAdminHandler(accounts *services.AccountService, posts *services.PostService) *AdminHandler {
	return &AdminHandler{accounts: accounts, posts: posts}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListForAdmin(r.Context())
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	resp := make([]models.AdminUserResponse, len(users))
	for i, u := range users {
		resp[i] = models.AdminUserResponse{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			PostCount: u.PostCount,
			CreatedAt: time.UnixMilli(u.CreatedAt).UTC(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteUser removes another account. Admins cannot delete themselves here.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	err := h.accounts.DeleteAsAdmin(r.Context(), currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(r.Context(), w, err, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPosts returns every post including unpublished drafts.
func (h *AdminHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.All(r.Context())
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to list posts", err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(r.Context(), w, err, "post not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
