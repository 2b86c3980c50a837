// Package models defines the JSON request and response bodies of the HTTP API.
package models

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hay-kot/criterio"
)

const (
	MinNameLength       = 2
	MinPasswordLength   = 8
	MinTitleLength      = 3
	MinContentLength    = 10
	MaxDirectMessageLen = 2000
)

var errAtLeastOneField = errors.New("provide at least one field to update")

func minLength(value string, n int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		return fmt.Errorf("must be at least %d characters", n)
	}
	return nil
}

func validEmail(value string) error {
	value = strings.TrimSpace(value)
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return errors.New("must be a valid email address")
	}
	return nil
}

func required(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("is required")
	}
	return nil
}

// Authentication
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if err := minLength(r.Name, MinNameLength); err != nil {
		errs = errs.Append("name", err)
	}
	if err := validEmail(r.Email); err != nil {
		errs = errs.Append("email", err)
	}
	if utf8.RuneCountInString(r.Password) < MinPasswordLength {
		errs = errs.Append("password", fmt.Errorf("must be at least %d characters", MinPasswordLength))
	}
	return errs.ToError()
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if err := validEmail(r.Email); err != nil {
		errs = errs.Append("email", err)
	}
	if r.Password == "" {
		errs = errs.Append("password", errors.New("is required"))
	}
	return errs.ToError()
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Users
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type UserSummaryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UpdateProfileRequest struct {
	Name            *string `json:"name,omitempty"`
	Password        *string `json:"password,omitempty"`
	ConfirmPassword *string `json:"confirmPassword,omitempty"`
}

func (r UpdateProfileRequest) Validate() error {
	if r.Name == nil && r.Password == nil {
		return criterio.NewFieldErrors("", errAtLeastOneField)
	}

	var errs criterio.FieldErrorsBuilder
	if r.Name != nil {
		if err := minLength(*r.Name, MinNameLength); err != nil {
			errs = errs.Append("name", err)
		}
	}
	if r.Password != nil {
		if utf8.RuneCountInString(*r.Password) < MinPasswordLength {
			errs = errs.Append("password", fmt.Errorf("must be at least %d characters", MinPasswordLength))
		}
		if r.ConfirmPassword == nil || *r.ConfirmPassword != *r.Password {
			errs = errs.Append("confirmPassword", errors.New("passwords do not match"))
		}
	}
	return errs.ToError()
}

// Admin
type AdminUserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	PostCount int64     `json:"postCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Posts
type AuthorResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PostResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Published bool            `json:"published"`
	Author    *AuthorResponse `json:"author"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type CreatePostRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published *bool  `json:"published,omitempty"`
}

func (r CreatePostRequest) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if err := minLength(r.Title, MinTitleLength); err != nil {
		errs = errs.Append("title", err)
	}
	if err := minLength(r.Content, MinContentLength); err != nil {
		errs = errs.Append("content", err)
	}
	return errs.ToError()
}

// IsPublished defaults to true when published was omitted.
func (r CreatePostRequest) IsPublished() bool {
	return r.Published == nil || *r.Published
}

type UpdatePostRequest struct {
	Title     *string `json:"title,omitempty"`
	Content   *string `json:"content,omitempty"`
	Published *bool   `json:"published,omitempty"`
}

func (r UpdatePostRequest) Validate() error {
	if r.Title == nil && r.Content == nil && r.Published == nil {
		return criterio.NewFieldErrors("", errAtLeastOneField)
	}

	var errs criterio.FieldErrorsBuilder
	if r.Title != nil {
		if err := minLength(*r.Title, MinTitleLength); err != nil {
			errs = errs.Append("title", err)
		}
	}
	if r.Content != nil {
		if err := minLength(*r.Content, MinContentLength); err != nil {
			errs = errs.Append("content", err)
		}
	}
	return errs.ToError()
}

// Friends
type AddFriendRequest struct {
	FriendID string `json:"friendId"`
}

func (r AddFriendRequest) Validate() error {
	if err := required(r.FriendID); err != nil {
		return criterio.NewFieldErrors("friendId", err)
	}
	return nil
}

type FriendResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AddFriendResponse struct {
	Friend  FriendResponse `json:"friend"`
	Message string         `json:"message"`
}

// Direct messages
type SendDirectMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Body        string `json:"body"`
}

func (r SendDirectMessageRequest) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if err := required(r.RecipientID); err != nil {
		errs = errs.Append("recipientId", err)
	}
	body := strings.TrimSpace(r.Body)
	switch {
	case body == "":
		errs = errs.Append("body", errors.New("is required"))
	case utf8.RuneCountInString(body) > MaxDirectMessageLen:
		errs = errs.Append("body", fmt.Errorf("must be at most %d characters", MaxDirectMessageLen))
	}
	return errs.ToError()
}

// Chat
type PublishChatRequest struct {
	Author string `json:"author,omitempty"`
	Body   string `json:"body"`
}

func (r PublishChatRequest) Validate() error {
	if err := required(r.Body); err != nil {
		return criterio.NewFieldErrors("body", err)
	}
	return nil
}

// Generic responses
type ErrorResponse struct {
	Error  string              `json:"error"`
	Errors map[string][]string `json:"errors,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
