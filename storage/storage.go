// Package storage provides the slot store the state documents live in.
// Each logical store owns one named slot and rewrites it wholesale on
// every mutation; there are no partial updates and no isolation between
// writers (last write wins).
package storage

import (
	"context"
	"errors"
)

// Well-known slot keys.
const (
	KeyUsers          = "users"
	KeyLoggedInUser   = "loggedInUser"
	KeyFriendRequests = "friend_requests"
	KeyChatState      = "cryptochat_state_v1"
)

var (
	ErrSlotNotFound = errors.New("slot not found")
)

// Backend defines whole-document slot persistence.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, doc []byte) error
	Delete(ctx context.Context, key string) error
}
