package handlers

import (
	"net/http"

	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/services"
)

// FriendHandler serves the caller's friend list.
type FriendHandler struct {
	friends *services.FriendService
}

// NewFriendHandler creates a FriendHandler.
func NewFriendHandler(friends *services.FriendService) *FriendHandler {
	return &FriendHandler{friends: friends}
}

// Add befriends another user in both directions.
func (h *FriendHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req models.AddFriendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	friend, err := h.friends.Add(r.Context(), currentUserID(r), req.FriendID)
	if err != nil {
		writeServiceError(r.Context(), w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusCreated, models.AddFriendResponse{
		Friend:  models.FriendResponse{ID: friend.ID, Name: friend.Name, Email: friend.Email},
		Message: "friend added",
	})
}

// List returns the caller's friends.
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	friends, err := h.friends.List(r.Context(), currentUserID(r))
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to list friends", err)
		return
	}

	resp := make([]models.FriendResponse, len(friends))
	for i, f := range friends {
		resp[i] = models.FriendResponse{ID: f.ID, Name: f.Name, Email: f.Email}
	}
	writeJSON(w, http.StatusOK, resp)
}
