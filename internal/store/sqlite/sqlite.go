package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teamchat/teamchat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	username  TEXT NOT NULL UNIQUE,
	last_seen DATETIME
);

CREATE TABLE IF NOT EXISTS rooms (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    INTEGER NOT NULL REFERENCES rooms(id),
	user_id    INTEGER NOT NULL REFERENCES users(id),
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup opens the database and runs a setup function.
// Useful for tests that need to seed rows alongside the schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== IdentityStore implementation ====

// EnsureUser returns the user with the given name, creating it on first
// reference with last_seen set to now.
func (s *SQLiteStore) EnsureUser(ctx context.Context, username string) (*store.User, error) {
	insert := `
		INSERT INTO users (username, last_seen)
		VALUES (?, ?)
		ON CONFLICT(username) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, username, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	query := `
		SELECT id, username, last_seen
		FROM users
		WHERE username = ?
	`
	var (
		user     store.User
		lastSeen sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Username, &lastSeen)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		user.LastSeen = &t
	}

	return &user, nil
}

// TouchLastSeen records when the user was last connected. Updating an
// unknown username is a no-op.
func (s *SQLiteStore) TouchLastSeen(ctx context.Context, username string, seen time.Time) error {
	query := `UPDATE users SET last_seen = ? WHERE username = ?`
	if _, err := s.db.ExecContext(ctx, query, seen.UTC(), username); err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

// ==== RoomStore implementation ====

// EnsureRoom returns the room with the given name, creating it on first
// reference.
func (s *SQLiteStore) EnsureRoom(ctx context.Context, name string) (*store.Room, error) {
	insert := `
		INSERT INTO rooms (name)
		VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, name); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	room, err := s.GetRoomByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ensure room: %w", err)
	}
	return room, nil
}

// GetRoomByName retrieves a room by name.
func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	query := `SELECT id, name FROM rooms WHERE name = ?`

	var room store.Room
	err := s.db.QueryRowContext(ctx, query, name).Scan(&room.ID, &room.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &room, nil
}

// ListRoomNames lists all room names sorted ascending.
func (s *SQLiteStore) ListRoomNames(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM rooms ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan room name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	return names, nil
}

// ==== MessageStore implementation ====

// Append persists one message and returns the timestamp it was stored
// with. Content is capped at store.MaxContentLen runes.
func (s *SQLiteStore) Append(ctx context.Context, roomID, userID int64, content string) (time.Time, error) {
	content = store.ClampContent(content)

	now := time.Now().UTC()
	query := `
		INSERT INTO messages (room_id, user_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID, content, now); err != nil {
		return time.Time{}, fmt.Errorf("insert message: %w", err)
	}

	return now, nil
}

// RecentMessages returns up to limit most recent messages of a room,
// oldest-first. The query walks newest-first under the room index, then
// the slice is reversed for serving.
func (s *SQLiteStore) RecentMessages(ctx context.Context, roomID int64, limit int) ([]*store.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.user_id, u.username, m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Username, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, nil
}
