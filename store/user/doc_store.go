// Package user holds the credential store: a single JSON document mapping
// username to password hash, rewritten wholesale on every registration.
package user

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/crypto-chat/cryptochat/storage"
)

// DocStore implements Store over a whole-document storage slot.
// Passwords are stored as bcrypt hashes; the document layout is otherwise
// the original username -> credential object.
type DocStore struct {
	mu      sync.RWMutex
	backend storage.Backend
	creds   map[string]string
}

// NewDocStore loads the users document from the backend. A missing or
// unreadable slot starts the store empty; persistence is best-effort.
func NewDocStore(ctx context.Context, backend storage.Backend) *DocStore {
	s := &DocStore{
		backend: backend,
		creds:   make(map[string]string),
	}

	doc, err := backend.Load(ctx, storage.KeyUsers)
	if err == nil {
		// Corrupt document falls back to an empty credential set.
		_ = json.Unmarshal(doc, &s.creds)
		if s.creds == nil {
			s.creds = make(map[string]string)
		}
	}
	return s
}

func (s *DocStore) Register(ctx context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.creds[username]; ok {
		return ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.creds[username] = string(hashed)
	s.persist(ctx)
	return nil
}

func (s *DocStore) Verify(ctx context.Context, username, password string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.creds[username]
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *DocStore) Exists(_ context.Context, username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.creds[username]
	return ok
}

// persist rewrites the whole document. Storage failures are swallowed:
// the in-memory effect stands and durability is best-effort.
func (s *DocStore) persist(ctx context.Context) {
	doc, err := json.Marshal(s.creds)
	if err != nil {
		return
	}
	_ = s.backend.Store(ctx, storage.KeyUsers, doc)
}

var _ Store = (*DocStore)(nil)
