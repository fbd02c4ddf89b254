package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/crypto-chat/cryptochat/app"
	"github.com/crypto-chat/cryptochat/internal/auth"
	"github.com/crypto-chat/cryptochat/storage"
	"github.com/crypto-chat/cryptochat/store/conversation"
	"github.com/crypto-chat/cryptochat/store/user"

	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	addr   = flag.String("addr", ":8080", "http service address")
	driver = flag.String("driver", "postgres", "sql driver for DATABASE_URL (postgres or sqlite3)")
)

// Global instances (in a real app, use dependency injection)
var (
	application   *app.App
	authenticator *auth.Authenticator
)

const sessionTTL = 24 * time.Hour

func main() {
	flag.Parse()
	ctx := context.Background()

	secret := os.Getenv("CRYPTOCHAT_SECRET")
	if secret == "" {
		secret = "temporary_secret_key"
	}
	authenticator = auth.NewAuthenticator(secret, "cryptochat", sessionTTL)

	var backend storage.Backend
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open(*driver, dsn)
		if err != nil {
			log.Fatal("Failed to open database:", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("Error closing db: %v", err)
			}
		}()

		sqlBackend, err := storage.NewSQLBackend(db, storage.Dialect(*driver))
		if err != nil {
			log.Fatal("Failed to create storage backend:", err)
		}
		if err := sqlBackend.EnsureSchema(ctx); err != nil {
			// Just log warning, maybe DB isn't up yet (Docker)
			log.Printf("Warning: schema setup failed: %v", err)
		}
		backend = sqlBackend
		log.Printf("Using %s slot storage", *driver)
	} else {
		backend = storage.NewMemoryBackend()
		log.Println("DATABASE_URL not set, using in-memory slot storage")
	}

	application = app.New(ctx, backend)

	hub := newHub()
	go hub.run()

	// API Endpoints
	http.HandleFunc("/api/register", handleRegister)
	http.HandleFunc("/api/login", handleLogin)
	http.HandleFunc("/api/logout", handleLogout)
	http.HandleFunc("/api/me", handleMe)
	http.HandleFunc("/api/friends", handleFriends)
	http.HandleFunc("/api/friends/request", withHub(hub, handleFriendRequest))
	http.HandleFunc("/api/friends/accept", withHub(hub, handleAcceptRequest))
	http.HandleFunc("/api/friends/decline", withHub(hub, handleDeclineRequest))
	http.HandleFunc("/api/friends/cancel", withHub(hub, handleCancelRequest))
	http.HandleFunc("/api/friends/remove", withHub(hub, handleUnfriend))
	http.HandleFunc("/api/requests", handleRequests)
	http.HandleFunc("/api/chats", handleChats)
	http.HandleFunc("/api/chats/select", handleSelectChat)
	http.HandleFunc("/api/messages", withHub(hub, handleMessages))

	// WebSocket Endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})

	// Health Check
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Printf("health check write error: %v", err)
		}
	})

	log.Printf("Server starting on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

// withHub lets mutation handlers push a chats_update signal after success.
func withHub(hub *Hub, h func(w http.ResponseWriter, r *http.Request, hub *Hub)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r, hub)
	}
}

func handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	if err := application.SignUp(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			http.Error(w, "Username already taken", http.StatusConflict)
			return
		}
		log.Printf("Error registering user: %v", err)
		http.Error(w, "Failed to register", http.StatusInternalServerError)
		return
	}

	token, err := authenticator.GenerateToken(req.Username)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]interface{}{
		"token":      token,
		"expires_in": int(sessionTTL.Seconds()),
	})
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	if err := application.LogIn(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	token, err := authenticator.GenerateToken(req.Username)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"token":      token,
		"expires_in": int(sessionTTL.Seconds()),
	})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := authenticateRequest(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	application.LogOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	username, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"username": username})
}

func handleFriends(w http.ResponseWriter, r *http.Request) {
	username, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	friends := application.FriendsOf(r.Context(), username)
	if friends == nil {
		friends = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, friends)
}

func handleFriendRequest(w http.ResponseWriter, r *http.Request, hub *Hub) {
	username, ok := requireMutation(w, r)
	if !ok {
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := application.SendFriendRequest(r.Context(), username, req.To); err != nil {
		if errors.Is(err, app.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to send request", http.StatusInternalServerError)
		return
	}

	hub.notify("chats_update")
	w.WriteHeader(http.StatusNoContent)
}

func handleAcceptRequest(w http.ResponseWriter, r *http.Request, hub *Hub) {
	username, ok := requireMutation(w, r)
	if !ok {
		return
	}

	var req struct {
		From string `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	application.AcceptRequest(r.Context(), req.From, username)
	hub.notify("chats_update")
	w.WriteHeader(http.StatusNoContent)
}

func handleDeclineRequest(w http.ResponseWriter, r *http.Request, hub *Hub) {
	username, ok := requireMutation(w, r)
	if !ok {
		return
	}

	var req struct {
		From string `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	application.DeclineRequest(r.Context(), req.From, username)
	hub.notify("chats_update")
	w.WriteHeader(http.StatusNoContent)
}

func handleCancelRequest(w http.ResponseWriter, r *http.Request, hub *Hub) {
	username, ok := requireMutation(w, r)
	if !ok {
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	application.CancelRequest(r.Context(), username, req.To)
	hub.notify("chats_update")
	w.WriteHeader(http.StatusNoContent)
}

func handleUnfriend(w http.ResponseWriter, r *http.Request, hub *Hub) {
	username, ok := requireMutation(w, r)
	if !ok {
		return
	}

	var req struct {
		Friend string `json:"friend"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Friend == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	application.Unfriend(r.Context(), username, req.Friend)
	hub.notify("chats_update")
	w.WriteHeader(http.StatusNoContent)
}

func handleRequests(w http.ResponseWriter, r *http.Request) {
	username, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"incoming": application.PendingIncoming(ctx, username),
		"outgoing": application.PendingOutgoing(ctx, username),
	})
}

func handleChats(w http.ResponseWriter, r *http.Request) {
	username, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, application.ChatList(r.Context(), username))
}

func handleSelectChat(w http.ResponseWriter, r *http.Request) {
	username, ok := requireMutation(w, r)
	if !ok {
		return
	}

	var req struct {
		Chat string `json:"chat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Chat == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := application.SelectChat(r.Context(), username, req.Chat); err != nil {
		http.Error(w, "Not friends with this user", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleMessages(w http.ResponseWriter, r *http.Request, hub *Hub) {
	username, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		chat := r.URL.Query().Get("chat")
		if chat == "" {
			http.Error(w, "chat is required", http.StatusBadRequest)
			return
		}
		msgs := application.Messages(r.Context(), username, chat)
		if msgs == nil {
			msgs = []conversation.Message{}
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, msgs)

	case http.MethodPost:
		var req struct {
			Chat    string `json:"chat"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Chat == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		msg, err := application.SendMessage(r.Context(), username, req.Chat, req.Content)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrNotFriends):
				http.Error(w, "Not friends with this user", http.StatusForbidden)
			case errors.Is(err, conversation.ErrEmptyContent):
				http.Error(w, "Message content is empty", http.StatusBadRequest)
			default:
				http.Error(w, "Failed to send message", http.StatusInternalServerError)
			}
			return
		}

		hub.notify("chats_update")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, msg)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// requireMutation authenticates a POST request.
func requireMutation(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	username, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return username, true
}

func authenticateRequest(r *http.Request) (string, error) {
	token := strings.TrimSpace(r.Header.Get("X-Session-Token"))
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}
	}
	if token == "" {
		return "", auth.ErrInvalidToken
	}

	claims, err := authenticator.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("response write error: %v", err)
	}
}
