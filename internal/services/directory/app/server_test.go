package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/campfirehq/campfire/internal/services/directory/seed"
	"github.com/campfirehq/campfire/internal/services/directory/storage/sqlite"
)

func newSeededHandler(t *testing.T) http.Handler {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "directory.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if _, err := seed.Apply(context.Background(), store, seed.Default()); err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	return NewHandler(store)
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) {
	t.Helper()

	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
}

func TestUpEndpoint(t *testing.T) {
	srv := httptest.NewServer(newSeededHandler(t))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/up")
	if err != nil {
		t.Fatalf("get /up: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "OK" {
		t.Fatalf("body = %q, want OK", string(body))
	}
}

func TestUsersEndpointReturnsSeededUsers(t *testing.T) {
	srv := httptest.NewServer(newSeededHandler(t))
	t.Cleanup(srv.Close)

	var payload struct {
		OK    bool `json:"ok"`
		Items []struct {
			ID         string `json:"id"`
			ExternalID string `json:"externalId"`
			Nickname   string `json:"nickname"`
			CreatedAt  string `json:"createdAt"`
		} `json:"items"`
	}
	getJSON(t, srv, "/users", &payload)

	if !payload.OK {
		t.Fatal("expected ok response")
	}
	if len(payload.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(payload.Items))
	}
	if payload.Items[0].Nickname != "Alice" {
		t.Fatalf("first nickname = %q, want Alice", payload.Items[0].Nickname)
	}
	if _, err := time.Parse(time.RFC3339, payload.Items[0].CreatedAt); err != nil {
		t.Fatalf("createdAt %q is not RFC3339: %v", payload.Items[0].CreatedAt, err)
	}
}

func TestMeEndpointReturnsUser(t *testing.T) {
	srv := httptest.NewServer(newSeededHandler(t))
	t.Cleanup(srv.Close)

	var payload struct {
		OK   bool `json:"ok"`
		Item *struct {
			ExternalID string `json:"externalId"`
			Nickname   string `json:"nickname"`
		} `json:"item"`
	}
	getJSON(t, srv, "/me?externalId=1234567890", &payload)

	if !payload.OK {
		t.Fatal("expected ok response")
	}
	if payload.Item == nil {
		t.Fatal("expected item")
	}
	if payload.Item.Nickname != "Alice" {
		t.Fatalf("nickname = %q, want Alice", payload.Item.Nickname)
	}
}

func TestMeEndpointUnknownIdentifierReturnsNullItem(t *testing.T) {
	srv := httptest.NewServer(newSeededHandler(t))
	t.Cleanup(srv.Close)

	var payload struct {
		OK   bool            `json:"ok"`
		Item json.RawMessage `json:"item"`
	}
	getJSON(t, srv, "/me?externalId=unknown", &payload)

	if !payload.OK {
		t.Fatal("expected ok response")
	}
	if string(payload.Item) != "null" {
		t.Fatalf("item = %s, want null", string(payload.Item))
	}
}

func TestRoomsEndpointReturnsSeededRooms(t *testing.T) {
	srv := httptest.NewServer(newSeededHandler(t))
	t.Cleanup(srv.Close)

	var payload struct {
		OK    bool `json:"ok"`
		Items []struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
			Name string `json:"name"`
		} `json:"items"`
	}
	getJSON(t, srv, "/rooms", &payload)

	if !payload.OK {
		t.Fatal("expected ok response")
	}
	if len(payload.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(payload.Items))
	}
	if payload.Items[0].Slug != "room1" || payload.Items[0].Name != "Room 1" {
		t.Fatalf("first room = %+v, want room1", payload.Items[0])
	}
}

func TestFriendsEndpointReturnsFriendUsers(t *testing.T) {
	srv := httptest.NewServer(newSeededHandler(t))
	t.Cleanup(srv.Close)

	var payload struct {
		OK    bool `json:"ok"`
		Items []struct {
			ExternalID string `json:"externalId"`
			Nickname   string `json:"nickname"`
		} `json:"items"`
	}
	getJSON(t, srv, "/friends?externalId=1234567890", &payload)

	if !payload.OK {
		t.Fatal("expected ok response")
	}
	if len(payload.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(payload.Items))
	}
	if payload.Items[0].Nickname != "Bob" || payload.Items[1].Nickname != "Charlie" {
		t.Fatalf("friends = %+v, want Bob and Charlie", payload.Items)
	}
}

func TestFriendsEndpointMissingIdentifierReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(newSeededHandler(t))
	t.Cleanup(srv.Close)

	var payload struct {
		OK    bool              `json:"ok"`
		Items []json.RawMessage `json:"items"`
	}
	getJSON(t, srv, "/friends", &payload)

	if !payload.OK || len(payload.Items) != 0 {
		t.Fatalf("payload = %+v, want ok with no items", payload)
	}
}

func TestEndpointsRejectNonGET(t *testing.T) {
	srv := httptest.NewServer(newSeededHandler(t))
	t.Cleanup(srv.Close)

	for _, path := range []string{"/users", "/me", "/rooms", "/friends"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("post %s status = %d, want %d", path, resp.StatusCode, http.StatusMethodNotAllowed)
		}
	}
}

func TestNewServerValidatesConfig(t *testing.T) {
	if _, err := NewServer(Config{StoragePath: "directory.db"}); err == nil {
		t.Fatal("expected error for missing http address")
	}
	if _, err := NewServer(Config{HTTPAddr: ":0"}); err == nil {
		t.Fatal("expected error for missing storage path")
	}
}

func TestRunReturnsInitErrorForInvalidConfig(t *testing.T) {
	err := Run(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "init directory server") {
		t.Fatalf("error = %v, want init directory server prefix", err)
	}
}

func TestRunStartsAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storagePath := filepath.Join(t.TempDir(), "directory.db")
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Config{
			HTTPAddr:    "127.0.0.1:0",
			StoragePath: storagePath,
		})
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestNilServerListenAndServe(t *testing.T) {
	var server *Server
	if err := server.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
}
