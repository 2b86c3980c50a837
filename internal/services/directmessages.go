package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commune/backend/internal/db"
	"github.com/commune/backend/internal/directmsg"
)

// ConversationLimit caps how many messages a conversation read returns.
const ConversationLimit = 200

// ErrEmptyMessage is returned when a direct message body is blank.
var ErrEmptyMessage = errors.New("message body must not be empty")

// DirectMessageService persists direct messages and hands them to the live bus.
type DirectMessageService struct {
	queries *db.Queries
	bus     *directmsg.Bus
	now     func() time.Time
}

// NewDirectMessageService creates a DirectMessageService.
func NewDirectMessageService(queries *db.Queries, bus *directmsg.Bus) *DirectMessageService {
	return &DirectMessageService{queries: queries, bus: bus, now: time.Now}
}

// Send stores a message from senderID to recipientID and publishes it to
// both users' live streams. Delivery failures never fail Send.
func (s *DirectMessageService) Send(ctx context.Context, senderID, recipientID, body string) (directmsg.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return directmsg.Message{}, ErrEmptyMessage
	}
	if senderID == recipientID {
		return directmsg.Message{}, ErrSelfAction
	}

	if _, err := s.queries.GetUserByID(ctx, recipientID); errors.Is(err, sql.ErrNoRows) {
		return directmsg.Message{}, ErrNotFound
	} else if err != nil {
		return directmsg.Message{}, fmt.Errorf("get recipient: %w", err)
	}

	row := db.DirectMessage{
		ID:          uuid.NewString(),
		Body:        body,
		SenderID:    senderID,
		RecipientID: recipientID,
		CreatedAt:   s.now().UnixMilli(),
	}
	if err := s.queries.CreateDirectMessage(ctx, row); err != nil {
		return directmsg.Message{}, fmt.Errorf("create direct message: %w", err)
	}

	msg := toMessage(row)
	s.bus.Publish(ctx, msg)
	return msg, nil
}

// Conversation returns up to ConversationLimit messages exchanged between
// userID and participantID, oldest first.
func (s *DirectMessageService) Conversation(ctx context.Context, userID, participantID string) ([]directmsg.Message, error) {
	rows, err := s.queries.ListConversation(ctx, db.ListConversationParams{
		UserID:        userID,
		ParticipantID: participantID,
		Limit:         ConversationLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}

	messages := make([]directmsg.Message, len(rows))
	for i, row := range rows {
		messages[i] = toMessage(row)
	}
	return messages, nil
}

func toMessage(row db.DirectMessage) directmsg.Message {
	return directmsg.Message{
		ID:          row.ID,
		Body:        row.Body,
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		CreatedAt:   FormatTimestamp(row.CreatedAt),
	}
}

// FormatTimestamp renders epoch milliseconds as a UTC ISO-8601 string with
// millisecond precision.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}
