package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commune/backend/internal/db"
)

// FriendService manages the mutual friend list.
type FriendService struct {
	sqlDB   *sql.DB
	queries *db.Queries
	now     func() time.Time
}

// NewFriendService creates a FriendService. sqlDB is used for the
// transaction that writes both directions of a friendship.
func NewFriendService(sqlDB *sql.DB, queries *db.Queries) *FriendService {
	return &FriendService{sqlDB: sqlDB, queries: queries, now: time.Now}
}

// Add makes userID and friendID friends of each other and returns the friend.
func (s *FriendService) Add(ctx context.Context, userID, friendID string) (db.User, error) {
	if userID == friendID {
		return db.User{}, ErrSelfAction
	}

	friend, err := s.queries.GetUserByID(ctx, friendID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.User{}, ErrNotFound
	}
	if err != nil {
		return db.User{}, fmt.Errorf("get friend: %w", err)
	}

	exists, err := s.queries.FriendshipExists(ctx, userID, friendID)
	if err != nil {
		return db.User{}, fmt.Errorf("check friendship: %w", err)
	}
	if exists {
		return db.User{}, ErrAlreadyFriends
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return db.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	now := s.now().UnixMilli()
	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		err := qtx.CreateFriendship(ctx, db.CreateFriendshipParams{
			ID:        uuid.NewString(),
			UserID:    pair[0],
			FriendID:  pair[1],
			CreatedAt: now,
		})
		// The reverse row may already exist from a half-finished earlier request.
		if err != nil && !db.IsUniqueViolation(err) {
			return db.User{}, fmt.Errorf("create friendship: %w", err)
		}
		if err != nil && pair[0] == userID {
			return db.User{}, ErrAlreadyFriends
		}
	}

	if err := tx.Commit(); err != nil {
		return db.User{}, fmt.Errorf("commit friendship: %w", err)
	}
	return friend, nil
}

// List returns userID's friends.
func (s *FriendService) List(ctx context.Context, userID string) ([]db.Friend, error) {
	return s.queries.ListFriends(ctx, userID)
}
