package db

import (
	"context"
)

const createDirectMessage = `-- name: CreateDirectMessage :exec
INSERT INTO direct_messages (id, body, sender_id, recipient_id, created_at) VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateDirectMessage(ctx context.Context, arg DirectMessage) error {
	_, err := q.db.ExecContext(ctx, createDirectMessage,
		arg.ID,
		arg.Body,
		arg.SenderID,
		arg.RecipientID,
		arg.CreatedAt,
	)
	return err
}

const listConversation = `-- name: ListConversation :many
SELECT id, body, sender_id, recipient_id, created_at
FROM direct_messages
WHERE (sender_id = ?1 AND recipient_id = ?2) OR (sender_id = ?2 AND recipient_id = ?1)
ORDER BY created_at ASC, rowid ASC
LIMIT ?3
`

type ListConversationParams struct {
	UserID        string
	ParticipantID string
	Limit         int64
}

func (q *Queries) ListConversation(ctx context.Context, arg ListConversationParams) ([]DirectMessage, error) {
	rows, err := q.db.QueryContext(ctx, listConversation, arg.UserID, arg.ParticipantID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DirectMessage
	for rows.Next() {
		var i DirectMessage
		if err := rows.Scan(
			&i.ID,
			&i.Body,
			&i.SenderID,
			&i.RecipientID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
