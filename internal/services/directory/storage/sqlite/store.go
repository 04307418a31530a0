// Package sqlite provides a SQLite-backed directory storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	sqlitemigrate "github.com/campfirehq/campfire/internal/platform/storage/sqlitemigrate"
	"github.com/campfirehq/campfire/internal/services/directory/storage"
	"github.com/campfirehq/campfire/internal/services/directory/storage/sqlite/migrations"
)

// Store persists directory state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite directory store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutUser inserts or replaces one user record.
func (s *Store) PutUser(ctx context.Context, user storage.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(user.ID)
	externalID := strings.TrimSpace(user.ExternalID)
	if id == "" {
		return fmt.Errorf("user id is required")
	}
	if externalID == "" {
		return fmt.Errorf("external id is required")
	}
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	lastSeenAt := user.LastSeenAt
	if lastSeenAt.IsZero() {
		lastSeenAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, external_id, nickname, created_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   external_id = excluded.external_id,
		   nickname = excluded.nickname,
		   last_seen_at = excluded.last_seen_at`,
		id,
		externalID,
		strings.TrimSpace(user.Nickname),
		toMillis(createdAt),
		toMillis(lastSeenAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUserByExternalID returns one user by external identifier.
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.User{}, fmt.Errorf("storage is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return storage.User{}, fmt.Errorf("external id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, external_id, nickname, created_at, last_seen_at
		   FROM users
		  WHERE external_id = ?`,
		externalID,
	)
	return scanUser(row)
}

// ListUsers returns all user records ordered by nickname.
func (s *Store) ListUsers(ctx context.Context) ([]storage.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, external_id, nickname, created_at, last_seen_at
		   FROM users
		  ORDER BY nickname ASC, external_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []storage.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of stored users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// PutRoom inserts or replaces one room record.
func (s *Store) PutRoom(ctx context.Context, room storage.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(room.ID)
	slug := strings.TrimSpace(room.Slug)
	name := strings.TrimSpace(room.Name)
	if id == "" {
		return fmt.Errorf("room id is required")
	}
	if slug == "" {
		return fmt.Errorf("room slug is required")
	}
	if name == "" {
		return fmt.Errorf("room name is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rooms (id, slug, name)
		 VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET slug = excluded.slug, name = excluded.name`,
		id,
		slug,
		name,
	)
	if err != nil {
		return fmt.Errorf("put room: %w", err)
	}
	return nil
}

// ListRooms returns all room records ordered by slug.
func (s *Store) ListRooms(ctx context.Context) ([]storage.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, slug, name FROM rooms ORDER BY slug ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []storage.Room
	for rows.Next() {
		var room storage.Room
		if err := rows.Scan(&room.ID, &room.Slug, &room.Name); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// PutFriendEdge records a directed friend relationship between externals.
func (s *Store) PutFriendEdge(ctx context.Context, externalID string, friendExternalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	friendExternalID = strings.TrimSpace(friendExternalID)
	if externalID == "" || friendExternalID == "" {
		return fmt.Errorf("external ids are required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO friend_edges (external_id, friend_external_id) VALUES (?, ?)`,
		externalID,
		friendExternalID,
	)
	if err != nil {
		return fmt.Errorf("put friend edge: %w", err)
	}
	return nil
}

// ListFriendExternalIDs returns the friend external ids for one user.
func (s *Store) ListFriendExternalIDs(ctx context.Context, externalID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("external id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT friend_external_id
		   FROM friend_edges
		  WHERE external_id = ?
		  ORDER BY friend_external_id ASC`,
		externalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friend edges: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var friendExternalID string
		if err := rows.Scan(&friendExternalID); err != nil {
			return nil, fmt.Errorf("scan friend edge: %w", err)
		}
		friends = append(friends, friendExternalID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list friend edges: %w", err)
	}
	return friends, nil
}

func scanUser(row interface{ Scan(...any) error }) (storage.User, error) {
	var user storage.User
	var createdAt int64
	var lastSeenAt int64
	err := row.Scan(&user.ID, &user.ExternalID, &user.Nickname, &createdAt, &lastSeenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	user.LastSeenAt = fromMillis(lastSeenAt)
	return user, nil
}
