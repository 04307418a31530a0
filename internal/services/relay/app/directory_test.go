package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewDirectoryClientEmptyBaseURL(t *testing.T) {
	if resolver := newDirectoryClient("   "); resolver != nil {
		t.Fatal("expected nil resolver for empty base URL")
	}
}

func TestResolveUserReturnsDirectoryUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			t.Fatalf("path = %q, want /me", r.URL.Path)
		}
		if got := r.URL.Query().Get("externalId"); got != "user-1" {
			t.Fatalf("externalId = %q, want user-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"item":{"id":"dir-1","externalId":"user-1","nickname":"Alice"}}`))
	}))
	t.Cleanup(srv.Close)

	resolver := newDirectoryClient(srv.URL + "/")
	user, err := resolver.ResolveUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("resolve user: %v", err)
	}
	if user == nil {
		t.Fatal("expected user")
	}
	if user.ID != "dir-1" || user.Nickname != "Alice" {
		t.Fatalf("user = %+v, want directory record", user)
	}
}

func TestResolveUserUnknownIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"item":null}`))
	}))
	t.Cleanup(srv.Close)

	resolver := newDirectoryClient(srv.URL)
	user, err := resolver.ResolveUser(context.Background(), "missing")
	if err != nil {
		t.Fatalf("resolve user: %v", err)
	}
	if user != nil {
		t.Fatalf("user = %+v, want nil for unknown identifier", user)
	}
}

func TestResolveUserEmptyExternalID(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	resolver := newDirectoryClient(srv.URL)
	user, err := resolver.ResolveUser(context.Background(), "   ")
	if err != nil {
		t.Fatalf("resolve user: %v", err)
	}
	if user != nil {
		t.Fatal("expected nil user for empty identifier")
	}
	if called {
		t.Fatal("expected no directory request for empty identifier")
	}
}

func TestResolveUserNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	resolver := newDirectoryClient(srv.URL)
	if _, err := resolver.ResolveUser(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestResolveUserMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":`))
	}))
	t.Cleanup(srv.Close)

	resolver := newDirectoryClient(srv.URL)
	if _, err := resolver.ResolveUser(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
