package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crypto-chat/cryptochat/app"
	"github.com/crypto-chat/cryptochat/internal/auth"
	"github.com/crypto-chat/cryptochat/storage"
	"github.com/crypto-chat/cryptochat/store/conversation"
)

func setupTestApp(t *testing.T) *Hub {
	t.Helper()
	application = app.New(context.Background(), storage.NewMemoryBackend())
	authenticator = auth.NewAuthenticator("test-secret", "cryptochat", time.Hour)
	hub := newHub()
	go hub.run()
	return hub
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func getJSON(t *testing.T, handler http.HandlerFunc, path, token string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler(rr, req)
	if out != nil && rr.Code < 300 {
		if err := json.NewDecoder(rr.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rr
}

func registerUser(t *testing.T, username string) string {
	t.Helper()
	rr := postJSON(t, handleRegister, "/api/register", "",
		map[string]string{"username": username, "password": "pw"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("register returned empty token")
	}
	return resp.Token
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	setupTestApp(t)

	registerUser(t, "alice")

	rr := postJSON(t, handleRegister, "/api/register", "",
		map[string]string{"username": "alice", "password": "other"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	setupTestApp(t)
	registerUser(t, "alice")

	rr := postJSON(t, handleLogin, "/api/login", "",
		map[string]string{"username": "alice", "password": "pw"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = postJSON(t, handleLogin, "/api/login", "",
		map[string]string{"username": "alice", "password": "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMeRequiresToken(t *testing.T) {
	setupTestApp(t)
	token := registerUser(t, "alice")

	rr := getJSON(t, handleMe, "/api/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	var resp struct {
		Username string `json:"username"`
	}
	rr = getJSON(t, handleMe, "/api/me", token, &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp.Username != "alice" {
		t.Errorf("expected alice, got %s", resp.Username)
	}
}

func TestFriendRequestFlow(t *testing.T) {
	hub := setupTestApp(t)
	aliceToken := registerUser(t, "alice")
	bobToken := registerUser(t, "bob")

	rr := postJSON(t, withHub(hub, handleFriendRequest), "/api/friends/request", aliceToken,
		map[string]string{"to": "ghost"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown target, got %d", rr.Code)
	}

	rr = postJSON(t, withHub(hub, handleFriendRequest), "/api/friends/request", aliceToken,
		map[string]string{"to": "bob"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	var reqs struct {
		Incoming []struct {
			From string `json:"from"`
		} `json:"incoming"`
	}
	rr = getJSON(t, handleRequests, "/api/requests", bobToken, &reqs)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(reqs.Incoming) != 1 || reqs.Incoming[0].From != "alice" {
		t.Fatalf("unexpected incoming requests: %+v", reqs.Incoming)
	}

	rr = postJSON(t, withHub(hub, handleAcceptRequest), "/api/friends/accept", bobToken,
		map[string]string{"from": "alice"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	var friends []string
	rr = getJSON(t, handleFriends, "/api/friends", aliceToken, &friends)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(friends) != 1 || friends[0] != "bob" {
		t.Fatalf("unexpected friends list: %v", friends)
	}
}

func TestMessageFlow(t *testing.T) {
	hub := setupTestApp(t)
	aliceToken := registerUser(t, "alice")
	bobToken := registerUser(t, "bob")

	messages := withHub(hub, handleMessages)

	// Direct messages need a friendship.
	rr := postJSON(t, messages, "/api/messages", aliceToken,
		map[string]string{"chat": "bob", "content": "hi"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	postJSON(t, withHub(hub, handleFriendRequest), "/api/friends/request", aliceToken,
		map[string]string{"to": "bob"})
	postJSON(t, withHub(hub, handleAcceptRequest), "/api/friends/accept", bobToken,
		map[string]string{"from": "alice"})

	rr = postJSON(t, messages, "/api/messages", aliceToken,
		map[string]string{"chat": "bob", "content": "hi"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = postJSON(t, messages, "/api/messages", aliceToken,
		map[string]string{"chat": "bob", "content": "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank content, got %d", rr.Code)
	}

	var msgs []conversation.Message
	rr = getJSON(t, messages, "/api/messages?chat=bob", aliceToken, &msgs)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestChatsIncludeBroadcast(t *testing.T) {
	setupTestApp(t)
	token := registerUser(t, "alice")

	var sums []conversation.Summary
	rr := getJSON(t, handleChats, "/api/chats", token, &sums)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(sums) != 1 || sums[0].ID != conversation.BroadcastID {
		t.Fatalf("expected only the broadcast chat, got %+v", sums)
	}
}
