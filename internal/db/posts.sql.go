package db

import (
	"context"
	"database/sql"
	"strings"
)

const postColumns = `p.id, p.title, p.content, p.published, p.author_id, u.name, p.created_at, p.updated_at`

func scanPost(row interface{ Scan(...any) error }) (Post, error) {
	var i Post
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Content,
		&i.Published,
		&i.AuthorID,
		&i.AuthorName,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listPosts(ctx context.Context, query string, args ...interface{}) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Post
	for rows.Next() {
		i, err := scanPost(rows)
		if err != nil {
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

const createPost = `-- name: CreatePost :exec
INSERT INTO posts (id, title, content, published, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreatePostParams struct {
	ID        string
	Title     string
	Content   string
	Published bool
	AuthorID  sql.NullString
	CreatedAt int64
}

func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) error {
	_, err := q.db.ExecContext(ctx, createPost,
		arg.ID,
		arg.Title,
		arg.Content,
		arg.Published,
		arg.AuthorID,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const getPost = `-- name: GetPost :one
SELECT ` + postColumns + `
FROM posts p LEFT JOIN users u ON u.id = p.author_id
WHERE p.id = ?
`

func (q *Queries) GetPost(ctx context.Context, id string) (Post, error) {
	return scanPost(q.db.QueryRowContext(ctx, getPost, id))
}

const listPublishedPosts = `-- name: ListPublishedPosts :many
SELECT ` + postColumns + `
FROM posts p LEFT JOIN users u ON u.id = p.author_id
WHERE p.published = 1
ORDER BY p.created_at DESC, p.id DESC
`

func (q *Queries) ListPublishedPosts(ctx context.Context) ([]Post, error) {
	return q.listPosts(ctx, listPublishedPosts)
}

const searchPublishedPosts = `-- name: SearchPublishedPosts :many
SELECT ` + postColumns + `
FROM posts p LEFT JOIN users u ON u.id = p.author_id
WHERE p.published = 1
  AND (p.title LIKE ?1 ESCAPE '\' OR p.content LIKE ?1 ESCAPE '\' OR u.name LIKE ?1 ESCAPE '\')
ORDER BY p.created_at DESC, p.id DESC
`

// SearchPublishedPosts matches term as a literal substring of the title,
// content or author name. LIKE is case-insensitive for ASCII in SQLite.
func (q *Queries) SearchPublishedPosts(ctx context.Context, term string) ([]Post, error) {
	return q.listPosts(ctx, searchPublishedPosts, containsPattern(term))
}

const listAllPosts = `-- name: ListAllPosts :many
SELECT ` + postColumns + `
FROM posts p LEFT JOIN users u ON u.id = p.author_id
ORDER BY p.created_at DESC, p.id DESC
`

func (q *Queries) ListAllPosts(ctx context.Context) ([]Post, error) {
	return q.listPosts(ctx, listAllPosts)
}

const updatePost = `-- name: UpdatePost :execrows
UPDATE posts SET title = ?, content = ?, published = ?, updated_at = ? WHERE id = ?
`

type UpdatePostParams struct {
	Title     string
	Content   string
	Published bool
	UpdatedAt int64
	ID        string
}

func (q *Queries) UpdatePost(ctx context.Context, arg UpdatePostParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePost,
		arg.Title,
		arg.Content,
		arg.Published,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deletePost = `-- name: DeletePost :execrows
DELETE FROM posts WHERE id = ?
`

func (q *Queries) DeletePost(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePost, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
