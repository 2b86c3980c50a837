package services

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSelfAction         = errors.New("action not allowed on yourself")
	ErrAlreadyFriends     = errors.New("already friends")
	ErrNothingToUpdate    = errors.New("nothing to update")
)
