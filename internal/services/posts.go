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
)

// NewPost is a validated post submission.
type NewPost struct {
	Title     string
	Content   string
	Published bool
}

// PostUpdate holds the optional fields of a post edit.
type PostUpdate struct {
	Title     *string
	Content   *string
	Published *bool
}

// PostService manages the post feed.
type PostService struct {
	queries *db.Queries
	now     func() time.Time
}

// NewPostService creates a PostService backed by queries.
func NewPostService(queries *db.Queries) *PostService {
	return &PostService{queries: queries, now: time.Now}
}

// Feed returns published posts newest first, filtered by search when it is
// not blank.
func (s *PostService) Feed(ctx context.Context, search string) ([]db.Post, error) {
	search = strings.TrimSpace(search)
	if search == "" {
		return s.queries.ListPublishedPosts(ctx)
	}
	return s.queries.SearchPublishedPosts(ctx, search)
}

// All returns every post including drafts.
func (s *PostService) All(ctx context.Context) ([]db.Post, error) {
	return s.queries.ListAllPosts(ctx)
}

// Create stores a post written by authorID.
func (s *PostService) Create(ctx context.Context, authorID string, post NewPost) (db.Post, error) {
	id := uuid.NewString()
	err := s.queries.CreatePost(ctx, db.CreatePostParams{
		ID:        id,
		Title:     strings.TrimSpace(post.Title),
		Content:   strings.TrimSpace(post.Content),
		Published: post.Published,
		AuthorID:  sql.NullString{String: authorID, Valid: authorID != ""},
		CreatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		return db.Post{}, fmt.Errorf("create post: %w", err)
	}
	return s.queries.GetPost(ctx, id)
}

// Update applies the non-nil fields of update to post id.
func (s *PostService) Update(ctx context.Context, id string, update PostUpdate) (db.Post, error) {
	if update.Title == nil && update.Content == nil && update.Published == nil {
		return db.Post{}, ErrNothingToUpdate
	}

	post, err := s.queries.GetPost(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Post{}, ErrNotFound
	}
	if err != nil {
		return db.Post{}, fmt.Errorf("get post: %w", err)
	}

	if update.Title != nil {
		post.Title = strings.TrimSpace(*update.Title)
	}
	if update.Content != nil {
		post.Content = strings.TrimSpace(*update.Content)
	}
	if update.Published != nil {
		post.Published = *update.Published
	}

	n, err := s.queries.UpdatePost(ctx, db.UpdatePostParams{
		Title:     post.Title,
		Content:   post.Content,
		Published: post.Published,
		UpdatedAt: s.now().UnixMilli(),
		ID:        id,
	})
	if err != nil {
		return db.Post{}, fmt.Errorf("update post: %w", err)
	}
	if n == 0 {
		return db.Post{}, ErrNotFound
	}
	return s.queries.GetPost(ctx, id)
}

// Delete removes post id.
func (s *PostService) Delete(ctx context.Context, id string) error {
	n, err := s.queries.DeletePost(ctx, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
