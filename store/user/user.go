package user

import (
	"context"
	"errors"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Store defines credential registration and verification.
type Store interface {
	Register(ctx context.Context, username, password string) error
	Verify(ctx context.Context, username, password string) error
	Exists(ctx context.Context, username string) bool
}
