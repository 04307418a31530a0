package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/campfirehq/campfire/internal/platform/timeouts"
)

// defaultMaxRoomMessages bounds each room's log; on overflow the oldest
// message is evicted first.
const defaultMaxRoomMessages = 1000

// Config defines the inputs for the relay transport boundary.
type Config struct {
	HTTPAddr          string
	DirectoryBaseURL  string
	MaxRoomMessages   int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the relay HTTP/WebSocket process.
//
// It delegates user lookups to the directory service so the relay remains
// transport and in-memory room state only.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// NewHandler creates relay routes with no directory integration, for
// tests and standalone runs.
func NewHandler() http.Handler {
	return newHandler(nil, defaultMaxRoomMessages)
}

func newHandler(resolver userResolver, maxRoomMessages int) http.Handler {
	store := newMessageStore(maxRoomMessages)
	registry := newRoomRegistry()
	handler := newRelayHandler(store, registry, resolver)

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(handler.handleConn)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handleMessages(w, r, store)
	})

	return mux
}

type messagesResponse struct {
	OK    bool          `json:"ok"`
	Items []chatMessage `json:"items"`
}

// handleMessages serves the read-only history projection used to backfill
// clients entering a room.
func handleMessages(w http.ResponseWriter, r *http.Request, store *messageStore) {
	roomID := strings.TrimSpace(r.URL.Query().Get("roomId"))

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	items := []chatMessage{}
	if roomID != "" {
		items = store.history(roomID, limit)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(messagesResponse{OK: true, Items: items})
}

// NewServer builds a configured relay server and wires directory lookups
// when a base URL is set.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	if config.MaxRoomMessages <= 0 {
		config.MaxRoomMessages = defaultMaxRoomMessages
	}

	resolver := newDirectoryClient(config.DirectoryBaseURL)
	if resolver == nil {
		log.Printf("relay: no directory base URL configured, identify claims are not enriched")
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(resolver, config.MaxRoomMessages),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
	}, nil
}

// Run creates and serves a relay server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init relay server: %w", err)
	}
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve relay: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("relay server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("relay server listening on %s", s.httpAddr)
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
