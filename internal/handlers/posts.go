package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/commune/backend/internal/db"
	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/services"
)

// PostHandler serves the post feed and post moderation.
type PostHandler struct {
	posts *services.PostService
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

func toPostResponse(p db.Post) models.PostResponse {
	resp := models.PostResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Published: p.Published,
		CreatedAt: time.UnixMilli(p.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(p.UpdatedAt).UTC(),
	}
	if p.AuthorID.Valid {
		resp.Author = &models.AuthorResponse{ID: p.AuthorID.String, Name: p.AuthorName.String}
	}
	return resp
}

func toPostResponses(posts []db.Post) []models.PostResponse {
	resp := make([]models.PostResponse, len(posts))
	for i, p := range posts {
		resp[i] = toPostResponse(p)
	}
	return resp
}

// List returns published posts newest first, filtered by ?q=.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Feed(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to list posts", err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// Create publishes a post by the caller.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	post, err := h.posts.Create(r.Context(), currentUserID(r), services.NewPost{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.IsPublished(),
	})
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to create post", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(post))
}

// Update edits a post. Admin only.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	post, err := h.posts.Update(r.Context(), chi.URLParam(r, "id"), services.PostUpdate{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// Delete removes a post. Admin only.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(r.Context(), w, err, "post not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
