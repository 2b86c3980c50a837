package db

import (
	"context"
)

const userColumns = `u.id, u.name, u.email, u.password_hash, r.name, u.created_at, u.updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.PasswordHash,
		&i.Role,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :exec
INSERT INTO users (id, name, email, password_hash, role_id, created_at, updated_at)
VALUES (?, ?, ?, ?, (SELECT id FROM roles WHERE name = ?), ?, ?)
`

type CreateUserParams struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.PasswordHash,
		arg.Role,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users u JOIN roles r ON r.id = u.role_id
WHERE u.id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + `
FROM users u JOIN roles r ON r.id = u.role_id
WHERE u.email = ?
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const listUserSummaries = `-- name: ListUserSummaries :many
SELECT id, name FROM users ORDER BY name COLLATE NOCASE, id
`

func (q *Queries) ListUserSummaries(ctx context.Context) ([]UserSummary, error) {
	rows, err := q.db.QueryContext(ctx, listUserSummaries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UserSummary
	for rows.Next() {
		var i UserSummary
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
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

const listUsersForAdmin = `-- name: ListUsersForAdmin :many
SELECT u.id, u.name, u.email, r.name,
       (SELECT COUNT(*) FROM posts p WHERE p.author_id = u.id),
       u.created_at
FROM users u JOIN roles r ON r.id = u.role_id
ORDER BY u.created_at DESC, u.id
`

func (q *Queries) ListUsersForAdmin(ctx context.Context) ([]AdminUserRow, error) {
	rows, err := q.db.QueryContext(ctx, listUsersForAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AdminUserRow
	for rows.Next() {
		var i AdminUserRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Email,
			&i.Role,
			&i.PostCount,
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

const updateUserName = `-- name: UpdateUserName :exec
UPDATE users SET name = ?, updated_at = ? WHERE id = ?
`

type UpdateUserNameParams struct {
	Name      string
	UpdatedAt int64
	ID        string
}

func (q *Queries) UpdateUserName(ctx context.Context, arg UpdateUserNameParams) error {
	_, err := q.db.ExecContext(ctx, updateUserName, arg.Name, arg.UpdatedAt, arg.ID)
	return err
}

const updateUserPassword = `-- name: UpdateUserPassword :exec
UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?
`

type UpdateUserPasswordParams struct {
	PasswordHash string
	UpdatedAt    int64
	ID           string
}

func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, arg.PasswordHash, arg.UpdatedAt, arg.ID)
	return err
}

const updateUserRole = `-- name: UpdateUserRole :exec
UPDATE users SET role_id = (SELECT id FROM roles WHERE name = ?), updated_at = ? WHERE id = ?
`

type UpdateUserRoleParams struct {
	Role      string
	UpdatedAt int64
	ID        string
}

func (q *Queries) UpdateUserRole(ctx context.Context, arg UpdateUserRoleParams) error {
	_, err := q.db.ExecContext(ctx, updateUserRole, arg.Role, arg.UpdatedAt, arg.ID)
	return err
}

const deleteUser = `-- name: DeleteUser :execrows
DELETE FROM users WHERE id = ?
`

func (q *Queries) DeleteUser(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
