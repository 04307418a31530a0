// Package server hosts the directory HTTP surface over seeded storage.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/campfirehq/campfire/internal/platform/timeouts"
	"github.com/campfirehq/campfire/internal/services/directory/seed"
	"github.com/campfirehq/campfire/internal/services/directory/storage"
	"github.com/campfirehq/campfire/internal/services/directory/storage/sqlite"
)

// Config defines the inputs for the directory service.
type Config struct {
	HTTPAddr          string
	StoragePath       string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the directory HTTP process and owns its storage handle.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           storage.Store
}

type userView struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Nickname   string `json:"nickname,omitempty"`
	CreatedAt  string `json:"createdAt"`
	LastSeenAt string `json:"lastSeenAt"`
}

type roomView struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func toUserView(user storage.User) userView {
	return userView{
		ID:         user.ID,
		ExternalID: user.ExternalID,
		Nickname:   user.Nickname,
		CreatedAt:  user.CreatedAt.UTC().Format(time.RFC3339),
		LastSeenAt: user.LastSeenAt.UTC().Format(time.RFC3339),
	}
}

// NewHandler creates directory routes over the given store.
func NewHandler(store storage.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/users", getOnly(func(w http.ResponseWriter, r *http.Request) {
		handleUsers(w, r, store)
	}))
	mux.HandleFunc("/me", getOnly(func(w http.ResponseWriter, r *http.Request) {
		handleMe(w, r, store)
	}))
	mux.HandleFunc("/rooms", getOnly(func(w http.ResponseWriter, r *http.Request) {
		handleRooms(w, r, store)
	}))
	mux.HandleFunc("/friends", getOnly(func(w http.ResponseWriter, r *http.Request) {
		handleFriends(w, r, store)
	}))
	return mux
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func handleUsers(w http.ResponseWriter, r *http.Request, store storage.Store) {
	users, err := store.ListUsers(r.Context())
	if err != nil {
		writeLookupError(w, "list users", err)
		return
	}
	items := make([]userView, 0, len(users))
	for _, user := range users {
		items = append(items, toUserView(user))
	}
	writeJSON(w, map[string]any{"ok": true, "items": items})
}

func handleMe(w http.ResponseWriter, r *http.Request, store storage.Store) {
	externalID := strings.TrimSpace(r.URL.Query().Get("externalId"))

	var item *userView
	if externalID != "" {
		user, err := store.GetUserByExternalID(r.Context(), externalID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// item stays null; an unknown identifier is not an error.
		case err != nil:
			writeLookupError(w, "get user", err)
			return
		default:
			view := toUserView(user)
			item = &view
		}
	}
	writeJSON(w, map[string]any{"ok": true, "item": item})
}

func handleRooms(w http.ResponseWriter, r *http.Request, store storage.Store) {
	rooms, err := store.ListRooms(r.Context())
	if err != nil {
		writeLookupError(w, "list rooms", err)
		return
	}
	items := make([]roomView, 0, len(rooms))
	for _, room := range rooms {
		items = append(items, roomView{ID: room.ID, Slug: room.Slug, Name: room.Name})
	}
	writeJSON(w, map[string]any{"ok": true, "items": items})
}

func handleFriends(w http.ResponseWriter, r *http.Request, store storage.Store) {
	externalID := strings.TrimSpace(r.URL.Query().Get("externalId"))

	items := []userView{}
	if externalID != "" {
		friendIDs, err := store.ListFriendExternalIDs(r.Context(), externalID)
		if err != nil {
			writeLookupError(w, "list friends", err)
			return
		}
		for _, friendID := range friendIDs {
			friend, err := store.GetUserByExternalID(r.Context(), friendID)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				writeLookupError(w, "get friend", err)
				return
			}
			items = append(items, toUserView(friend))
		}
	}
	writeJSON(w, map[string]any{"ok": true, "items": items})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeLookupError(w http.ResponseWriter, op string, err error) {
	log.Printf("directory: %s: %v", op, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "lookup failed"})
}

// NewServer opens directory storage, seeds it when empty, and builds the
// HTTP server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.StoragePath) == "" {
		return nil, errors.New("storage path is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := sqlite.Open(config.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open directory storage: %w", err)
	}

	seeded, err := seed.Apply(context.Background(), store, seed.Default())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed directory storage: %w", err)
	}
	if seeded {
		log.Printf("directory storage seeded at %s", config.StoragePath)
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(store),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

// Run creates and serves a directory server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init directory server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve directory: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("directory server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("directory server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close directory storage: %v", err)
		}
	}
}
