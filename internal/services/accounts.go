package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commune/backend/internal/crypto"
	"github.com/commune/backend/internal/db"
)

// AccountUpdate holds the optional fields of a profile change.
type AccountUpdate struct {
	Name     *string
	Password *string
}

// AccountService manages user accounts and their credentials.
type AccountService struct {
	queries      *db.Queries
	now          func() time.Time
	hashPassword func(string) (string, error)
}

// NewAccountService creates an AccountService backed by queries.
func NewAccountService(queries *db.Queries) *AccountService {
	return &AccountService{
		queries:      queries,
		now:          time.Now,
		hashPassword: crypto.HashPassword,
	}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a USER account.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (db.User, error) {
	return s.create(ctx, strings.TrimSpace(name), NormalizeEmail(email), password, db.RoleUser)
}

func (s *AccountService) create(ctx context.Context, name, email, password, role string) (db.User, error) {
	if _, err := s.queries.GetUserByEmail(ctx, email); err == nil {
		return db.User{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return db.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return db.User{}, err
	}

	id := uuid.NewString()
	err = s.queries.CreateUser(ctx, db.CreateUserParams{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UnixMilli(),
	})
	if db.IsUniqueViolation(err) {
		return db.User{}, ErrEmailTaken
	}
	if err != nil {
		return db.User{}, fmt.Errorf("create user: %w", err)
	}

	return s.queries.GetUserByID(ctx, id)
}

// Authenticate returns the account matching email and password.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (db.User, error) {
	user, err := s.queries.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return db.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return db.User{}, fmt.Errorf("lookup email: %w", err)
	}

	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return db.User{}, ErrInvalidCredentials
		}
		return db.User{}, err
	}
	return user, nil
}

// Get returns the account with id.
func (s *AccountService) Get(ctx context.Context, id string) (db.User, error) {
	user, err := s.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return db.User{}, ErrNotFound
	}
	return user, err
}

// List returns every account's id and name.
func (s *AccountService) List(ctx context.Context) ([]db.UserSummary, error) {
	return s.queries.ListUserSummaries(ctx)
}

// ListForAdmin returns every account with its role and post count.
func (s *AccountService) ListForAdmin(ctx context.Context) ([]db.AdminUserRow, error) {
	return s.queries.ListUsersForAdmin(ctx)
}

// Update changes the name and/or password of account id.
func (s *AccountService) Update(ctx context.Context, id string, update AccountUpdate) (db.User, error) {
	if update.Name == nil && update.Password == nil {
		return db.User{}, ErrNothingToUpdate
	}
	if _, err := s.Get(ctx, id); err != nil {
		return db.User{}, err
	}

	now := s.now().UnixMilli()
	if update.Name != nil {
		err := s.queries.UpdateUserName(ctx, db.UpdateUserNameParams{
			Name:      strings.TrimSpace(*update.Name),
			UpdatedAt: now,
			ID:        id,
		})
		if err != nil {
			return db.User{}, fmt.Errorf("update name: %w", err)
		}
	}
	if update.Password != nil {
		hash, err := s.hashPassword(*update.Password)
		if err != nil {
			return db.User{}, err
		}
		err = s.queries.UpdateUserPassword(ctx, db.UpdateUserPasswordParams{
			PasswordHash: hash,
			UpdatedAt:    now,
			ID:           id,
		})
		if err != nil {
			return db.User{}, fmt.Errorf("update password: %w", err)
		}
	}

	return s.queries.GetUserByID(ctx, id)
}

// Delete removes account id. Its posts are kept without an author.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	n, err := s.queries.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAsAdmin removes account targetID on behalf of actorID, who may not
// remove themselves this way.
func (s *AccountService) DeleteAsAdmin(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return ErrSelfAction
	}
	return s.Delete(ctx, targetID)
}

// EnsureAdmin creates the bootstrap administrator, or promotes and resets
// the password of an existing account with that email.
func (s *AccountService) EnsureAdmin(ctx context.Context, name, email, password string) (db.User, error) {
	email = NormalizeEmail(email)

	existing, err := s.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		user, err := s.create(ctx, strings.TrimSpace(name), email, password, db.RoleAdmin)
		if err == nil {
			slog.Info("admin account created", slog.String("user_id", user.ID))
		}
		return user, err
	}
	if err != nil {
		return db.User{}, fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return db.User{}, err
	}
	now := s.now().UnixMilli()
	if err := s.queries.UpdateUserPassword(ctx, db.UpdateUserPasswordParams{PasswordHash: hash, UpdatedAt: now, ID: existing.ID}); err != nil {
		return db.User{}, fmt.Errorf("reset admin password: %w", err)
	}
	if err := s.queries.UpdateUserRole(ctx, db.UpdateUserRoleParams{Role: db.RoleAdmin, UpdatedAt: now, ID: existing.ID}); err != nil {
		return db.User{}, fmt.Errorf("promote admin: %w", err)
	}

	slog.Info("admin account ensured", slog.String("user_id", existing.ID))
	return s.queries.GetUserByID(ctx, existing.ID)
}
