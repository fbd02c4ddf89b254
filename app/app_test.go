package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-chat/cryptochat/storage"
	"github.com/crypto-chat/cryptochat/store/conversation"
	"github.com/crypto-chat/cryptochat/store/user"
)

func newApp(t *testing.T) *App {
	t.Helper()
	return New(context.Background(), storage.NewMemoryBackend())
}

func befriend(t *testing.T, a *App, from, to string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.SendFriendRequest(ctx, from, to))
	a.AcceptRequest(ctx, from, to)
}

func TestSignUpAndLogIn(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	current, ok := a.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", current)

	require.ErrorIs(t, a.SignUp(ctx, "alice", "other"), user.ErrUsernameTaken)

	a.LogOut(ctx)
	_, ok = a.CurrentUser(ctx)
	assert.False(t, ok)

	require.ErrorIs(t, a.LogIn(ctx, "alice", "wrong"), user.ErrInvalidCredentials)
	require.NoError(t, a.LogIn(ctx, "alice", "pw"))
}

func TestSendFriendRequestRequiresRegisteredTarget(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	require.ErrorIs(t, a.SendFriendRequest(ctx, "alice", "ghost"), ErrUserNotFound)

	require.NoError(t, a.SignUp(ctx, "bob", "pw"))
	require.NoError(t, a.SendFriendRequest(ctx, "alice", "bob"))
	require.Len(t, a.PendingIncoming(ctx, "bob"), 1)
}

func TestAcceptFlowEstablishesFriendship(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	require.NoError(t, a.SignUp(ctx, "bob", "pw"))
	befriend(t, a, "alice", "bob")

	assert.Empty(t, a.PendingIncoming(ctx, "bob"))
	assert.Equal(t, []string{"bob"}, a.FriendsOf(ctx, "alice"))
	assert.Equal(t, []string{"alice"}, a.FriendsOf(ctx, "bob"))
}

func TestSendMessageRequiresFriendshipOrBroadcast(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	require.NoError(t, a.SignUp(ctx, "bob", "pw"))

	_, err := a.SendMessage(ctx, "alice", "bob", "hi")
	require.ErrorIs(t, err, ErrNotFriends)

	_, err = a.SendMessage(ctx, "alice", conversation.BroadcastID, "hello all")
	require.NoError(t, err)

	befriend(t, a, "alice", "bob")
	msg, err := a.SendMessage(ctx, "alice", "bob", "hi")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Sender)
	assert.True(t, msg.IsOwn)
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	_, err := a.SendMessage(ctx, "alice", conversation.BroadcastID, "   ")
	require.ErrorIs(t, err, conversation.ErrEmptyContent)
}

func TestUnfriendDiscardsConversation(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	require.NoError(t, a.SignUp(ctx, "bob", "pw"))
	befriend(t, a, "alice", "bob")

	_, err := a.SendMessage(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	a.Unfriend(ctx, "alice", "bob")

	assert.Empty(t, a.FriendsOf(ctx, "alice"))
	assert.Empty(t, a.FriendsOf(ctx, "bob"))
	assert.Empty(t, a.Messages(ctx, "alice", "bob"))

	// The chat list no longer carries bob.
	for _, sum := range a.ChatList(ctx, "alice") {
		assert.NotEqual(t, "bob", sum.ID)
	}
}

func TestChatListIncludesBroadcastAndFriends(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	require.NoError(t, a.SignUp(ctx, "bob", "pw"))
	befriend(t, a, "alice", "bob")

	_, err := a.SendMessage(ctx, "alice", "bob", "there")
	require.NoError(t, err)

	sums := a.ChatList(ctx, "alice")
	require.Len(t, sums, 2)
	assert.Equal(t, "bob", sums[0].ID)
	assert.Equal(t, "there", sums[0].LastMessage)
	assert.Equal(t, conversation.BroadcastID, sums[1].ID)
}

func TestMessagesRecomputeOwnershipPerViewer(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	require.NoError(t, a.SignUp(ctx, "bob", "pw"))
	befriend(t, a, "alice", "bob")

	_, err := a.SendMessage(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	asAlice := a.Messages(ctx, "alice", "bob")
	require.Len(t, asAlice, 1)
	assert.True(t, asAlice[0].IsOwn)

	asBob := a.Messages(ctx, "bob", "bob")
	require.Len(t, asBob, 1)
	assert.False(t, asBob[0].IsOwn)
}

func TestSelectChatValidatesTarget(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)

	require.NoError(t, a.SignUp(ctx, "alice", "pw"))
	require.ErrorIs(t, a.SelectChat(ctx, "alice", "bob"), ErrNotFriends)

	require.NoError(t, a.SelectChat(ctx, "alice", conversation.BroadcastID))
	selected, ok := a.Convos.SelectedChat(ctx)
	require.True(t, ok)
	assert.Equal(t, conversation.BroadcastID, selected)
}
