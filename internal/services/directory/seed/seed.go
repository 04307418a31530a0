// Package seed provides the static directory fixtures and applies them to
// an empty store on service startup.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campfirehq/campfire/internal/services/directory/storage"
)

// Fixture bundles the seed users, rooms, and friend relationships.
type Fixture struct {
	Users   []storage.User
	Rooms   []storage.Room
	Friends map[string][]string // external id -> friend external ids
}

// Default returns the seed fixture. User ids are generated per process;
// external ids and rooms are stable so clients can hardcode them.
func Default() Fixture {
	now := time.Now().UTC()
	return Fixture{
		Users: []storage.User{
			{ID: uuid.New().String(), ExternalID: "1234567890", Nickname: "Alice", CreatedAt: now, LastSeenAt: now},
			{ID: uuid.New().String(), ExternalID: "1234567891", Nickname: "Bob", CreatedAt: now, LastSeenAt: now},
			{ID: uuid.New().String(), ExternalID: "1234567892", Nickname: "Charlie", CreatedAt: now, LastSeenAt: now},
		},
		Rooms: []storage.Room{
			{ID: "1234567890", Slug: "room1", Name: "Room 1"},
			{ID: "9876543210", Slug: "room2", Name: "Room 2"},
			{ID: "4567890123", Slug: "room3", Name: "Room 3"},
		},
		Friends: map[string][]string{
			"1234567890": {"1234567891", "1234567892"},
			"1234567891": {"1234567890", "1234567892"},
			"1234567892": {"1234567890", "1234567891"},
		},
	}
}

// Apply writes the fixture into the store when no users exist yet.
// It reports whether seeding ran.
func Apply(ctx context.Context, store storage.Store, fixture Fixture) (bool, error) {
	if store == nil {
		return false, fmt.Errorf("store is required")
	}

	count, err := store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	for _, user := range fixture.Users {
		if err := store.PutUser(ctx, user); err != nil {
			return false, fmt.Errorf("seed user %s: %w", user.ExternalID, err)
		}
	}
	for _, room := range fixture.Rooms {
		if err := store.PutRoom(ctx, room); err != nil {
			return false, fmt.Errorf("seed room %s: %w", room.Slug, err)
		}
	}
	for externalID, friends := range fixture.Friends {
		for _, friendExternalID := range friends {
			if err := store.PutFriendEdge(ctx, externalID, friendExternalID); err != nil {
				return false, fmt.Errorf("seed friend edge %s -> %s: %w", externalID, friendExternalID, err)
			}
		}
	}
	return true, nil
}
