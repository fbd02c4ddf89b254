// Package friend holds the friend-request graph: an ordered JSON array of
// directed request records, rewritten wholesale on every mutation.
package friend

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/crypto-chat/cryptochat/storage"
)

// DocStore implements Store over a whole-document storage slot.
type DocStore struct {
	mu      sync.RWMutex
	backend storage.Backend
	reqs    []Request
}

// NewDocStore loads the friend_requests document from the backend.
// A missing or unreadable slot starts the graph empty.
func NewDocStore(ctx context.Context, backend storage.Backend) *DocStore {
	s := &DocStore{backend: backend}

	doc, err := backend.Load(ctx, storage.KeyFriendRequests)
	if err == nil {
		_ = json.Unmarshal(doc, &s.reqs)
	}
	return s
}

// SendRequest appends a sent record. Self-requests and duplicates of an
// existing (from, to) record at any status are silently ignored.
func (s *DocStore) SendRequest(ctx context.Context, from, to string) {
	if from == to {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reqs {
		if r.From == from && r.To == to {
			return
		}
	}

	s.reqs = append(s.reqs, Request{From: from, To: to, Status: StatusSent})
	s.persist(ctx)
}

// AcceptRequest replaces any (from, to) record with a single accepted one.
// Calling it twice leaves the graph in the same state as calling it once.
func (s *DocStore) AcceptRequest(ctx context.Context, from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(from, to)
	s.reqs = append(s.reqs, Request{From: from, To: to, Status: StatusAccepted})
	s.persist(ctx)
}

// DeclineRequest removes the (from, to) record. No-op when absent.
func (s *DocStore) DeclineRequest(ctx context.Context, from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removeLocked(from, to) {
		s.persist(ctx)
	}
}

// CancelOutgoing withdraws a sent request. Same removal semantics as
// decline, invoked by the sender.
func (s *DocStore) CancelOutgoing(ctx context.Context, from, to string) {
	s.DeclineRequest(ctx, from, to)
}

// RemoveFriendship deletes the accepted record for the unordered pair,
// whichever direction it was stored in.
func (s *DocStore) RemoveFriendship(ctx context.Context, userA, userB string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.reqs[:0]
	removed := false
	for _, r := range s.reqs {
		pair := (r.From == userA && r.To == userB) || (r.From == userB && r.To == userA)
		if pair && r.Status == StatusAccepted {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	s.reqs = kept

	if removed {
		s.persist(ctx)
	}
}

// FriendsOf derives the undirected friends relation: V is a friend of U iff
// an accepted record exists in either direction. Order is not guaranteed.
func (s *DocStore) FriendsOf(_ context.Context, username string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var friends []string
	for _, r := range s.reqs {
		if r.Status != StatusAccepted {
			continue
		}
		switch username {
		case r.From:
			friends = append(friends, r.To)
		case r.To:
			friends = append(friends, r.From)
		}
	}
	return friends
}

// PendingIncoming lists sent records addressed to the user.
func (s *DocStore) PendingIncoming(_ context.Context, username string) []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []Request
	for _, r := range s.reqs {
		if r.Status == StatusSent && r.To == username {
			pending = append(pending, r)
		}
	}
	return pending
}

// PendingOutgoing lists sent records the user has not withdrawn.
func (s *DocStore) PendingOutgoing(_ context.Context, username string) []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []Request
	for _, r := range s.reqs {
		if r.Status == StatusSent && r.From == username {
			pending = append(pending, r)
		}
	}
	return pending
}

// removeLocked drops every (from, to) record. Caller holds the lock.
func (s *DocStore) removeLocked(from, to string) bool {
	kept := s.reqs[:0]
	removed := false
	for _, r := range s.reqs {
		if r.From == from && r.To == to {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	s.reqs = kept
	return removed
}

// persist rewrites the whole document, best-effort.
func (s *DocStore) persist(ctx context.Context) {
	doc, err := json.Marshal(s.reqs)
	if err != nil {
		return
	}
	_ = s.backend.Store(ctx, storage.KeyFriendRequests, doc)
}

var _ Store = (*DocStore)(nil)
