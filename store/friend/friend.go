package friend

import "context"

// Status of a directed friend-request record.
type Status string

const (
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
)

// Request is a directed edge between two usernames.
type Request struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status Status `json:"status"`
}

// Store defines friend-graph operations. The friends relation is derived
// from accepted records, never stored directly. All removals are tolerant
// of missing records: they are no-ops, never errors.
type Store interface {
	SendRequest(ctx context.Context, from, to string)
	AcceptRequest(ctx context.Context, from, to string)
	DeclineRequest(ctx context.Context, from, to string)
	CancelOutgoing(ctx context.Context, from, to string)
	RemoveFriendship(ctx context.Context, userA, userB string)
	FriendsOf(ctx context.Context, username string) []string
	PendingIncoming(ctx context.Context, username string) []Request
	PendingOutgoing(ctx context.Context, username string) []Request
}
