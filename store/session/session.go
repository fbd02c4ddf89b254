// Package session tracks which username is currently authenticated in this
// context. The value is mirrored to the loggedInUser slot as a plain string
// and removed on logout.
package session

import (
	"context"
	"sync"

	"github.com/crypto-chat/cryptochat/storage"
)

// Store holds the active session.
type Store interface {
	LogIn(ctx context.Context, username string)
	LogOut(ctx context.Context)
	Current(ctx context.Context) (string, bool)
}

// DocStore implements Store over the loggedInUser slot.
type DocStore struct {
	mu      sync.RWMutex
	backend storage.Backend
	current string
}

// NewDocStore restores any persisted session from the backend.
func NewDocStore(ctx context.Context, backend storage.Backend) *DocStore {
	s := &DocStore{backend: backend}
	if doc, err := backend.Load(ctx, storage.KeyLoggedInUser); err == nil {
		s.current = string(doc)
	}
	return s
}

func (s *DocStore) LogIn(ctx context.Context, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = username
	_ = s.backend.Store(ctx, storage.KeyLoggedInUser, []byte(username))
}

func (s *DocStore) LogOut(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = ""
	_ = s.backend.Delete(ctx, storage.KeyLoggedInUser)
}

func (s *DocStore) Current(_ context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == "" {
		return "", false
	}
	return s.current, true
}

var _ Store = (*DocStore)(nil)
