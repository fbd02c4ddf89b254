// Package conversation holds per-conversation message history and the
// derived chat summaries. Everything lives in one JSON document keyed by
// cryptochat_state_v1, rewritten wholesale on every mutation. Summaries are
// always derived from the message sequences on read; no parallel chat list
// is persisted.
package conversation

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crypto-chat/cryptochat/storage"
)

// document is the persisted shape of the conversation state. Timestamps
// serialize as RFC 3339 strings and revive on load.
type document struct {
	SelectedChat *string              `json:"selectedChat"`
	ChatMessages map[string][]Message `json:"chatMessages"`
}

// DocStore implements Store over a whole-document storage slot.
type DocStore struct {
	mu       sync.RWMutex
	backend  storage.Backend
	selected *string
	msgs     map[string][]Message
}

// NewDocStore loads the chat state document from the backend. A fresh store
// seeds the broadcast channel with its welcome message.
func NewDocStore(ctx context.Context, backend storage.Backend) *DocStore {
	s := &DocStore{
		backend: backend,
		msgs:    make(map[string][]Message),
	}

	doc, err := backend.Load(ctx, storage.KeyChatState)
	if err == nil {
		var d document
		if json.Unmarshal(doc, &d) == nil && d.ChatMessages != nil {
			s.msgs = d.ChatMessages
			s.selected = d.SelectedChat
			return s
		}
	}

	s.msgs[BroadcastID] = []Message{{
		ID:        uuid.NewString(),
		Content:   "Welcome to CryptoChat – secure messaging for everyone.",
		Sender:    BroadcastName,
		Timestamp: time.Now(),
		IsOwn:     false,
	}}
	s.persist(ctx)
	return s
}

// Ensure creates an empty message sequence for id if none exists.
func (s *DocStore) Ensure(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.msgs[id]; ok {
		return
	}
	s.msgs[id] = []Message{}
	s.persist(ctx)
}

// Append validates, constructs, and appends a new message, returning it.
// Content that trims to empty is rejected and the sequence is unchanged.
// Whether id is a legitimate target is the caller's check.
func (s *DocStore) Append(ctx context.Context, id, content, sender string, isOwn bool) (*Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyContent
	}

	msg := Message{
		ID:        uuid.NewString(),
		Content:   trimmed,
		Sender:    sender,
		Timestamp: time.Now(),
		IsOwn:     isOwn,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs[id] = append(s.msgs[id], msg)
	s.persist(ctx)
	return &msg, nil
}

// Delete removes the conversation and all its messages permanently.
func (s *DocStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.msgs[id]; !ok {
		return
	}
	delete(s.msgs, id)
	if s.selected != nil && *s.selected == id {
		s.selected = nil
	}
	s.persist(ctx)
}

// Messages returns the conversation's sequence in append order.
func (s *DocStore) Messages(_ context.Context, id string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.msgs[id]
	out := make([]Message, len(seq))
	copy(out, seq)
	return out
}

// Summaries builds one summary per friend plus the broadcast channel, each
// from its conversation's last message, sorted by recency. Equal timestamps
// keep their insertion order (broadcast first, then friends as given).
func (s *DocStore) Summaries(_ context.Context, friends []string, broadcastID string) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(friends)+1)
	out = append(out, s.summarizeLocked(broadcastID, BroadcastName))
	for _, f := range friends {
		out = append(out, s.summarizeLocked(f, f))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (s *DocStore) summarizeLocked(id, name string) Summary {
	sum := Summary{ID: id, Name: name, LastMessage: NoMessagesText}
	if seq := s.msgs[id]; len(seq) > 0 {
		last := seq[len(seq)-1]
		sum.LastMessage = last.Content
		sum.Timestamp = last.Timestamp
	}
	return sum
}

// SelectedChat reports the persisted chat selection, if any.
func (s *DocStore) SelectedChat(_ context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == nil {
		return "", false
	}
	return *s.selected, true
}

// SetSelectedChat persists the selection. An empty id clears it.
func (s *DocStore) SetSelectedChat(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		s.selected = nil
	} else {
		s.selected = &id
	}
	s.persist(ctx)
}

// persist rewrites the whole document, best-effort.
func (s *DocStore) persist(ctx context.Context) {
	doc, err := json.Marshal(document{
		SelectedChat: s.selected,
		ChatMessages: s.msgs,
	})
	if err != nil {
		return
	}
	_ = s.backend.Store(ctx, storage.KeyChatState, doc)
}

var _ Store = (*DocStore)(nil)
