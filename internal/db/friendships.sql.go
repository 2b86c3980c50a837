package db

import (
	"context"
)

const createFriendship = `-- name: CreateFriendship :exec
INSERT INTO friendships (id, user_id, friend_id, created_at) VALUES (?, ?, ?, ?)
`

type CreateFriendshipParams struct {
	ID        string
	UserID    string
	FriendID  string
	CreatedAt int64
}

func (q *Queries) CreateFriendship(ctx context.Context, arg CreateFriendshipParams) error {
	_, err := q.db.ExecContext(ctx, createFriendship, arg.ID, arg.UserID, arg.FriendID, arg.CreatedAt)
	return err
}

const friendshipExists = `-- name: FriendshipExists :one
SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id = ? AND friend_id = ?)
`

func (q *Queries) FriendshipExists(ctx context.Context, userID, friendID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, friendshipExists, userID, friendID).Scan(&exists)
	return exists, err
}

const listFriends = `-- name: ListFriends :many
SELECT u.id, u.name, u.email, f.created_at
FROM friendships f JOIN users u ON u.id = f.friend_id
WHERE f.user_id = ?
ORDER BY u.name COLLATE NOCASE, u.id
`

func (q *Queries) ListFriends(ctx context.Context, userID string) ([]Friend, error) {
	rows, err := q.db.QueryContext(ctx, listFriends, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Friend
	for rows.Next() {
		var i Friend
		if err := rows.Scan(&i.ID, &i.Name, &i.Email, &i.Since); err != nil {
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
