package store

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

// MaxContentLen caps a chat message body, in runes.
const MaxContentLen = 1000

// ClampContent truncates a message body to MaxContentLen runes without
// splitting a multi-byte character. Callers clamp before broadcasting so
// what goes out on the wire matches what gets persisted.
func ClampContent(s string) string {
	if utf8.RuneCountInString(s) <= MaxContentLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxContentLen])
}

// ErrRoomNotFound is returned when a room name has no row.
var ErrRoomNotFound = errors.New("room not found")

// User represents a chat participant.
type User struct {
	ID       int64
	Username string
	LastSeen *time.Time
}

// Room represents a named chat room.
type Room struct {
	ID   int64
	Name string
}

// Message represents a persisted chat message, joined with the author's
// username for serving history.
type Message struct {
	ID        int64
	RoomID    int64
	UserID    int64
	Username  string
	Content   string
	CreatedAt time.Time
}

// IdentityStore handles user rows.
type IdentityStore interface {
	// EnsureUser returns the user with the given name, creating it on
	// first reference.
	EnsureUser(ctx context.Context, username string) (*User, error)

	// TouchLastSeen records when the user was last connected.
	// Unknown usernames are ignored.
	TouchLastSeen(ctx context.Context, username string, seen time.Time) error
}

// RoomStore handles room rows.
type RoomStore interface {
	// EnsureRoom returns the room with the given name, creating it on
	// first reference.
	EnsureRoom(ctx context.Context, name string) (*Room, error)

	// GetRoomByName retrieves a room, returning ErrRoomNotFound if absent.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// ListRoomNames lists all room names sorted ascending.
	ListRoomNames(ctx context.Context) ([]string, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// Append persists one message and returns the timestamp it was
	// stored with.
	Append(ctx context.Context, roomID, userID int64, content string) (time.Time, error)

	// RecentMessages returns up to limit most recent messages of a room,
	// oldest-first.
	RecentMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	IdentityStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
