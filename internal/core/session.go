package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamchat/teamchat-server/internal/store"
)

// ErrUsernameRequired is returned when a session arrives without a
// usable username and is closed before ever joining a room.
var ErrUsernameRequired = errors.New("username required")

// SessionHandler owns one connection's full lifecycle: connect-time
// validation, the receive loop, and the shared teardown path. It is the
// bridge between the transport's connections and the registry,
// broadcaster, and stores.
type SessionHandler struct {
	presence    *Presence
	broadcaster *Broadcaster
	store       store.Store
	log         *zerolog.Logger
}

// NewSessionHandler builds a session handler over the given collaborators.
func NewSessionHandler(presence *Presence, broadcaster *Broadcaster, st store.Store, logger *zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		presence:    presence,
		broadcaster: broadcaster,
		store:       st,
		log:         logger,
	}
}

// HandleSession runs the connection from join to leave and blocks until
// the session ends. A blank username closes the connection with a policy
// violation before any room state is touched. Cleanup runs on every exit
// path: last-seen is updated best-effort, then the departure is
// announced regardless of how the receive loop ended.
func (h *SessionHandler) HandleSession(ctx context.Context, conn Conn, room, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		_ = conn.Close(ClosePolicyViolation)
		return ErrUsernameRequired
	}

	rm, err := h.store.EnsureRoom(ctx, room)
	if err != nil {
		_ = conn.Close(CloseInternalError)
		return fmt.Errorf("ensure room %q: %w", room, err)
	}
	user, err := h.store.EnsureUser(ctx, username)
	if err != nil {
		_ = conn.Close(CloseInternalError)
		return fmt.Errorf("ensure user %q: %w", username, err)
	}

	h.presence.Join(ctx, room, conn, username)
	h.log.Info().Str("conn_id", conn.ID()).Str("room", room).Str("username", username).Msg("session started")

	defer func() {
		// The request context is canceled once the socket is gone, but
		// teardown still has to reach storage and the other members.
		cleanupCtx := context.WithoutCancel(ctx)
		if err := h.store.TouchLastSeen(cleanupCtx, username, time.Now().UTC()); err != nil {
			h.log.Warn().Err(err).Str("username", username).Msg("update last seen")
		}
		h.presence.Leave(cleanupCtx, room, conn, username)
		h.log.Info().Str("conn_id", conn.ID()).Str("room", room).Str("username", username).Msg("session ended")
	}()

	h.receiveLoop(ctx, conn, room, username, rm.ID, user.ID)
	return nil
}

// receiveLoop translates inbound frames into broadcasts until the
// connection drops. Malformed frames, blank chat content, and unknown
// types are skipped; none of them ends the session.
func (h *SessionHandler) receiveLoop(ctx context.Context, conn Conn, room, username string, roomID, userID int64) {
	for {
		data, err := conn.Receive(ctx)
		if err != nil {
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			h.log.Debug().Str("conn_id", conn.ID()).Msg("discarding malformed frame")
			continue
		}

		switch in.Type {
		case InboundTypeChat:
			h.handleChat(ctx, room, username, roomID, userID, in.Content)
		case InboundTypeTyping:
			h.broadcaster.Broadcast(ctx, room, TypingEvent(room, username, in.Typing()))
		default:
			// Unknown types are ignored.
		}
	}
}

// handleChat persists the message, then broadcasts it with the
// store-assigned timestamp. A persistence failure aborts only this
// message's broadcast, never the session. Content is clamped here so
// the broadcast carries exactly what the store keeps.
func (h *SessionHandler) handleChat(ctx context.Context, room, username string, roomID, userID int64, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	content = store.ClampContent(content)

	ts, err := h.store.Append(ctx, roomID, userID, content)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Str("username", username).Msg("persist message")
		return
	}
	h.broadcaster.Broadcast(ctx, room, ChatEvent(room, username, content, ts))
}
