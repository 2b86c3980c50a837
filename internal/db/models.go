package db

import "database/sql"

// Role names as seeded by the initial migration.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    int64
	UpdatedAt    int64
}

type UserSummary struct {
	ID   string
	Name string
}

type AdminUserRow struct {
	ID        string
	Name      string
	Email     string
	Role      string
	PostCount int64
	CreatedAt int64
}

type Post struct {
	ID         string
	Title      string
	Content    string
	Published  bool
	AuthorID   sql.NullString
	AuthorName sql.NullString
	CreatedAt  int64
	UpdatedAt  int64
}

type Friend struct {
	ID    string
	Name  string
	Email string
	Since int64
}

type DirectMessage struct {
	ID          string
	Body        string
	SenderID    string
	RecipientID string
	CreatedAt   int64
}
