package handlers

import (
	"errors"
	"net/http"

	"github.com/hay-kot/criterio"

	"github.com/commune/backend/internal/chat"
	"github.com/commune/backend/internal/middleware"
	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/sse"
)

// ChatHandler serves the broadcast chat channel.
type ChatHandler struct {
	broadcaster *chat.Broadcaster
	streams     StreamConfig
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(broadcaster *chat.Broadcaster, streams StreamConfig) *ChatHandler {
	return &ChatHandler{broadcaster: broadcaster, streams: streams}
}

// Stream replays the retained history oldest first, then every new message
// as a `data:` record, with heartbeat comments in between.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	serveStream(w, r, h.streams.options("chat"), func(stream *sse.Stream) error {
		unsubscribe, err := h.broadcaster.Subscribe(func(msg chat.Message) error {
			return stream.Send(msg)
		})
		if err != nil {
			return err
		}
		stream.OnClose(unsubscribe)
		return nil
	})
}

// Publish posts a message to every connected reader. Without an explicit
// author the caller's display name is used.
func (h *ChatHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req models.PublishChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	author := req.Author
	if author == "" {
		if claims := middleware.GetClaims(r.Context()); claims != nil {
			author = claims.Name
		}
	}

	msg, err := h.broadcaster.Publish(r.Context(), author, req.Body)
	if errors.Is(err, chat.ErrEmptyBody) {
		writeValidationError(w, criterio.NewFieldErrors("body", err))
		return
	}
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to publish message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
