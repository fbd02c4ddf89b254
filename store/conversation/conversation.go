package conversation

import (
	"context"
	"errors"
	"time"
)

// Reserved broadcast channel. Modeled as a plain conversation with a
// non-username id so the store interface stays uniform.
const (
	BroadcastID   = "team"
	BroadcastName = "Team Crypto"
)

// Placeholder summary text for a conversation with no history yet.
const NoMessagesText = "No messages yet"

var (
	ErrEmptyContent = errors.New("message content is empty")
)

// Message is one entry in a conversation's append-only sequence.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsOwn     bool      `json:"isOwn"`
}

// Summary is the derived, display-oriented projection of a conversation's
// most recent message. It is recomputed on every read and never persisted.
// Unread is always zero in this model; there is no read tracking.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	LastMessage string    `json:"lastMessage"`
	Timestamp   time.Time `json:"timestamp"`
	Unread      int       `json:"unread"`
}

// Store defines conversation persistence operations.
type Store interface {
	Ensure(ctx context.Context, id string)
	Append(ctx context.Context, id, content, sender string, isOwn bool) (*Message, error)
	Delete(ctx context.Context, id string)
	Messages(ctx context.Context, id string) []Message
	Summaries(ctx context.Context, friends []string, broadcastID string) []Summary
	SelectedChat(ctx context.Context) (string, bool)
	SetSelectedChat(ctx context.Context, id string)
}
