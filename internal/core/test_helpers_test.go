package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamchat/teamchat-server/internal/store"
)

// fakeConn is an in-memory core.Conn: receives are scripted through a
// channel, sends are recorded for assertions.
type fakeConn struct {
	id      string
	inbound chan []byte

	mu        sync.Mutex
	sent      [][]byte
	failSend  bool
	discard   bool
	closeCode CloseCode
	closed    bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, inbound: make(chan []byte, 16)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("send failed")
	}
	if !c.discard {
		c.sent = append(c.sent, append([]byte(nil), data...))
	}
	return nil
}

func (c *fakeConn) Close(code CloseCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.closeCode = code
	}
	return nil
}

// push scripts one inbound frame.
func (c *fakeConn) push(frame string) {
	c.inbound <- []byte(frame)
}

// disconnect ends the scripted receive stream.
func (c *fakeConn) disconnect() {
	close(c.inbound)
}

func (c *fakeConn) events(t *testing.T) []Event {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	evs := make([]Event, 0, len(c.sent))
	for _, data := range c.sent {
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("undecodable frame %q: %v", data, err)
		}
		evs = append(evs, ev)
	}
	return evs
}

// waitEvents polls until the connection has received at least n frames.
func waitEvents(t *testing.T, c *fakeConn, n int) []Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		evs := c.events(t)
		if len(evs) >= n {
			return evs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d events, got %d", n, len(c.events(t)))
	return nil
}

// fixedStamp is the timestamp the fake store assigns to every message.
var fixedStamp = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory store.Store for exercising sessions without
// a database.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[string]*store.User
	rooms     map[string]*store.Room
	messages  []*store.Message
	touched   []string
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*store.User),
		rooms: make(map[string]*store.Room),
	}
}

func (s *fakeStore) EnsureUser(_ context.Context, username string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	s.nextID++
	u := &store.User{ID: s.nextID, Username: username}
	s.users[username] = u
	return u, nil
}

func (s *fakeStore) TouchLastSeen(_ context.Context, username string, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, username)
	if u, ok := s.users[username]; ok {
		t := seen
		u.LastSeen = &t
	}
	return nil
}

func (s *fakeStore) EnsureRoom(_ context.Context, name string) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[name]; ok {
		return r, nil
	}
	s.nextID++
	r := &store.Room{ID: s.nextID, Name: name}
	s.rooms[name] = r
	return r, nil
}

func (s *fakeStore) GetRoomByName(_ context.Context, name string) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[name]; ok {
		return r, nil
	}
	return nil, store.ErrRoomNotFound
}

func (s *fakeStore) ListRoomNames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeStore) Append(_ context.Context, roomID, userID int64, content string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return time.Time{}, s.appendErr
	}
	s.nextID++
	s.messages = append(s.messages, &store.Message{
		ID:        s.nextID,
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: fixedStamp,
	})
	return fixedStamp, nil
}

func (s *fakeStore) RecentMessages(_ context.Context, roomID int64, limit int) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]*store.Message, 0)
	for _, m := range s.messages {
		if m.RoomID == roomID {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) appendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeStore) lastMessage() *store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

func (s *fakeStore) touchedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.touched...)
}

// newTestStack wires a registry, broadcaster, presence tracker, and
// session handler over a fake store with a silent logger.
func newTestStack(st store.Store) (*Registry, *Broadcaster, *Presence, *SessionHandler) {
	logger := zerolog.Nop()
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, time.Second, &logger)
	presence := NewPresence(registry, broadcaster)
	sessions := NewSessionHandler(presence, broadcaster, st, &logger)
	return registry, broadcaster, presence, sessions
}

// containsUser reports whether the roster names the user.
func containsUser(users []string, name string) bool {
	for _, u := range users {
		if u == name {
			return true
		}
	}
	return false
}
