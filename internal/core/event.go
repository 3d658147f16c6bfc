package core

import (
	"encoding/json"
	"time"
)

// EventType tags an outbound event on the wire.
type EventType string

const (
	// EventJoin announces that a user joined a room.
	EventJoin EventType = "join"
	// EventLeave announces that a user left a room.
	EventLeave EventType = "leave"
	// EventChat carries one chat message.
	EventChat EventType = "chat"
	// EventTyping carries a typing-presence flag.
	EventTyping EventType = "typing"
	// EventOnlineList carries the full roster of a room.
	EventOnlineList EventType = "online_list"
)

// Event is the wire representation of everything the server pushes to
// clients: one flat JSON object per frame, with type-specific fields
// left empty for the other types.
type Event struct {
	Type      EventType `json:"type"`
	Room      string    `json:"room"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	IsTyping  *bool     `json:"isTyping,omitempty"`
	Users     []string  `json:"users,omitempty"`
}

// JoinEvent builds the announcement for a user entering a room.
func JoinEvent(room, username string) Event {
	return Event{Type: EventJoin, Room: room, Username: username}
}

// LeaveEvent builds the announcement for a user leaving a room.
func LeaveEvent(room, username string) Event {
	return Event{Type: EventLeave, Room: room, Username: username}
}

// ChatEvent builds a chat message event. The timestamp is the one the
// store assigned when persisting the message.
func ChatEvent(room, username, content string, ts time.Time) Event {
	return Event{
		Type:      EventChat,
		Room:      room,
		Username:  username,
		Content:   content,
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}

// TypingEvent builds a typing-presence event.
func TypingEvent(room, username string, isTyping bool) Event {
	return Event{Type: EventTyping, Room: room, Username: username, IsTyping: &isTyping}
}

// OnlineListEvent builds a roster event. Order of users is not
// meaningful; a room with no one online yields an event without the
// users field.
func OnlineListEvent(room string, users []string) Event {
	return Event{Type: EventOnlineList, Room: room, Users: users}
}

// Inbound frame types accepted from clients.
const (
	InboundTypeChat   = "chat"
	InboundTypeTyping = "typing"
)

// Inbound is the envelope for frames coming from the client. The typing
// flag is kept raw so that a frame with a junk value in it still parses;
// Typing resolves it per field instead of rejecting the whole frame.
type Inbound struct {
	Type     string          `json:"type"`
	Content  string          `json:"content,omitempty"`
	IsTyping json.RawMessage `json:"isTyping,omitempty"`
}

// Typing reports the typing flag, defaulting to true when the flag is
// absent or not a valid bool.
func (in Inbound) Typing() bool {
	if len(in.IsTyping) == 0 {
		return true
	}
	var v bool
	if err := json.Unmarshal(in.IsTyping, &v); err != nil {
		return true
	}
	return v
}
