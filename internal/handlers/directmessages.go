package handlers

import (
	"net/http"

	"github.com/commune/backend/internal/directmsg"
	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/services"
	"github.com/commune/backend/internal/sse"
)

// DirectMessageHandler serves one-to-one conversations.
type DirectMessageHandler struct {
	messages *services.DirectMessageService
	bus      *directmsg.Bus
	streams  StreamConfig
}

// NewDirectMessageHandler creates a DirectMessageHandler.
func NewDirectMessageHandler(messages *services.DirectMessageService, bus *directmsg.Bus, streams StreamConfig) *DirectMessageHandler {
	return &DirectMessageHandler{messages: messages, bus: bus, streams: streams}
}

// List returns the conversation between the caller and ?participantId=.
func (h *DirectMessageHandler) List(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		writeError(w, http.StatusBadRequest, "participantId is required")
		return
	}

	messages, err := h.messages.Conversation(r.Context(), currentUserID(r), participantID)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to load conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// Create stores a message and pushes it to both participants' open streams.
func (h *DirectMessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.SendDirectMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.messages.Send(r.Context(), currentUserID(r), req.RecipientID, req.Body)
	if err != nil {
		writeServiceError(r.Context(), w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Stream sends a ready event, then every message the caller sends or
// receives. Nothing is replayed; clients load history through List.
func (h *DirectMessageHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	serveStream(w, r, h.streams.options("direct"), func(stream *sse.Stream) error {
		if err := stream.SendEvent("ready", struct{}{}); err != nil {
			return err
		}
		unsubscribe := h.bus.Subscribe(userID, func(msg directmsg.Message) error {
			return stream.Send(msg)
		})
		stream.OnClose(unsubscribe)
		return nil
	})
}
