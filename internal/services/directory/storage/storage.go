// Package storage defines persistence contracts for directory service state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested directory record is missing.
var ErrNotFound = errors.New("record not found")

// User stores one directory user record.
type User struct {
	ID         string
	ExternalID string
	Nickname   string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// Room stores one directory room record.
type Room struct {
	ID   string
	Slug string
	Name string
}

// Store persists directory records. All lookups are read paths for the
// HTTP surface; the put methods exist for seeding and tests.
type Store interface {
	PutUser(ctx context.Context, user User) error
	GetUserByExternalID(ctx context.Context, externalID string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)

	PutRoom(ctx context.Context, room Room) error
	ListRooms(ctx context.Context) ([]Room, error)

	PutFriendEdge(ctx context.Context, externalID string, friendExternalID string) error
	ListFriendExternalIDs(ctx context.Context, externalID string) ([]string, error)

	Close() error
}
