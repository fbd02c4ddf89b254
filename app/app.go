// Package app wires the credential, friend-graph, conversation, and session
// stores together and enforces the cross-store rules: a friend request
// needs a registered target, a direct message needs a current friendship,
// and unfriending discards the conversation history.
package app

import (
	"context"
	"errors"

	"github.com/crypto-chat/cryptochat/storage"
	"github.com/crypto-chat/cryptochat/store/conversation"
	"github.com/crypto-chat/cryptochat/store/friend"
	"github.com/crypto-chat/cryptochat/store/session"
	"github.com/crypto-chat/cryptochat/store/user"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNotFriends   = errors.New("not friends with this user")
)

// App is the application service over one shared slot store.
type App struct {
	Users    user.Store
	Friends  friend.Store
	Convos   conversation.Store
	Sessions session.Store
}

// New builds an App with document stores over the given backend.
func New(ctx context.Context, backend storage.Backend) *App {
	return &App{
		Users:    user.NewDocStore(ctx, backend),
		Friends:  friend.NewDocStore(ctx, backend),
		Convos:   conversation.NewDocStore(ctx, backend),
		Sessions: session.NewDocStore(ctx, backend),
	}
}

// SignUp registers a new credential and opens a session for it.
func (a *App) SignUp(ctx context.Context, username, password string) error {
	if err := a.Users.Register(ctx, username, password); err != nil {
		return err
	}
	a.Sessions.LogIn(ctx, username)
	return nil
}

// LogIn verifies the credential and opens a session.
func (a *App) LogIn(ctx context.Context, username, password string) error {
	if err := a.Users.Verify(ctx, username, password); err != nil {
		return err
	}
	a.Sessions.LogIn(ctx, username)
	return nil
}

// LogOut clears the session.
func (a *App) LogOut(ctx context.Context) {
	a.Sessions.LogOut(ctx)
}

// CurrentUser reports the active session, if any.
func (a *App) CurrentUser(ctx context.Context) (string, bool) {
	return a.Sessions.Current(ctx)
}

// SendFriendRequest validates that the target is registered, then records
// the request. Self-requests and duplicates are ignored by the graph store.
func (a *App) SendFriendRequest(ctx context.Context, from, to string) error {
	if !a.Users.Exists(ctx, to) {
		return ErrUserNotFound
	}
	a.Friends.SendRequest(ctx, from, to)
	return nil
}

// AcceptRequest marks the (from, to) request accepted.
func (a *App) AcceptRequest(ctx context.Context, from, to string) {
	a.Friends.AcceptRequest(ctx, from, to)
}

// DeclineRequest drops an incoming request.
func (a *App) DeclineRequest(ctx context.Context, from, to string) {
	a.Friends.DeclineRequest(ctx, from, to)
}

// CancelRequest withdraws an outgoing request.
func (a *App) CancelRequest(ctx context.Context, from, to string) {
	a.Friends.CancelOutgoing(ctx, from, to)
}

// Unfriend removes the friendship and discards the conversation history
// with that friend.
func (a *App) Unfriend(ctx context.Context, username, friendName string) {
	a.Friends.RemoveFriendship(ctx, username, friendName)
	a.Convos.Delete(ctx, friendName)
}

// FriendsOf lists current friends.
func (a *App) FriendsOf(ctx context.Context, username string) []string {
	return a.Friends.FriendsOf(ctx, username)
}

// PendingIncoming lists requests awaiting the user's decision.
func (a *App) PendingIncoming(ctx context.Context, username string) []friend.Request {
	return a.Friends.PendingIncoming(ctx, username)
}

// PendingOutgoing lists requests the user has sent and not withdrawn.
func (a *App) PendingOutgoing(ctx context.Context, username string) []friend.Request {
	return a.Friends.PendingOutgoing(ctx, username)
}

// SelectChat validates the target and persists the selection, creating the
// conversation if it does not exist yet.
func (a *App) SelectChat(ctx context.Context, username, chatID string) error {
	if err := a.checkTarget(ctx, username, chatID); err != nil {
		return err
	}
	a.Convos.Ensure(ctx, chatID)
	a.Convos.SetSelectedChat(ctx, chatID)
	return nil
}

// SendMessage appends a message from the user into the chat. The target
// must be the broadcast channel or a current friend.
func (a *App) SendMessage(ctx context.Context, username, chatID, content string) (*conversation.Message, error) {
	if err := a.checkTarget(ctx, username, chatID); err != nil {
		return nil, err
	}
	return a.Convos.Append(ctx, chatID, content, username, true)
}

// ChatList derives the summary list for the user: the broadcast channel
// plus one entry per friend, newest first.
func (a *App) ChatList(ctx context.Context, username string) []conversation.Summary {
	friends := a.Friends.FriendsOf(ctx, username)
	return a.Convos.Summaries(ctx, friends, conversation.BroadcastID)
}

// Messages returns the chat's history with ownership recomputed for the
// viewer; the persisted isOwn flag carries no meaning across sessions.
func (a *App) Messages(ctx context.Context, username, chatID string) []conversation.Message {
	msgs := a.Convos.Messages(ctx, chatID)
	for i := range msgs {
		msgs[i].IsOwn = msgs[i].Sender == username
	}
	return msgs
}

func (a *App) checkTarget(ctx context.Context, username, chatID string) error {
	if chatID == conversation.BroadcastID {
		return nil
	}
	for _, f := range a.Friends.FriendsOf(ctx, username) {
		if f == chatID {
			return nil
		}
	}
	return ErrNotFriends
}
