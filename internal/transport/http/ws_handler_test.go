package http

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/teamchat/teamchat-server/internal/core"
)

func wsDial(t *testing.T, ctx context.Context, ts string, room, username string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts, "http", "ws", 1) + "/ws/" + url.PathEscape(room)
	if username != "" {
		wsURL += "?username=" + url.QueryEscape(username)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func mustReadEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) core.Event {
	t.Helper()

	var ev core.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func expectEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, typ core.EventType) core.Event {
	t.Helper()

	ev := mustReadEvent(t, ctx, conn)
	if ev.Type != typ {
		t.Fatalf("expected %s event, got %+v", typ, ev)
	}
	return ev
}

func TestWebSocketRejectsBlankUsername(t *testing.T) {
	ts, _, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, q := range []string{"", "?username=", "?username=%20%20"} {
		wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws/General" + q
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}

		_, _, err = conn.Read(ctx)
		if err == nil {
			t.Fatalf("query %q: expected the server to close the connection", q)
		}
		if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
			t.Fatalf("query %q: expected policy violation close, got %v (%v)", q, status, err)
		}
		conn.Close(websocket.StatusNormalClosure, "done")
	}
}

func TestWebSocketChatScenario(t *testing.T) {
	ts, _, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := wsDial(t, ctx, ts.URL, "General", "alice")

	if ev := expectEvent(t, ctx, alice, core.EventJoin); ev.Username != "alice" || ev.Room != "General" {
		t.Fatalf("unexpected join event: %+v", ev)
	}
	if ev := expectEvent(t, ctx, alice, core.EventOnlineList); len(ev.Users) != 1 || ev.Users[0] != "alice" {
		t.Fatalf("unexpected roster: %+v", ev)
	}

	bob := wsDial(t, ctx, ts.URL, "General", "bob")

	if ev := expectEvent(t, ctx, alice, core.EventJoin); ev.Username != "bob" {
		t.Fatalf("unexpected join event: %+v", ev)
	}
	if ev := expectEvent(t, ctx, alice, core.EventOnlineList); len(ev.Users) != 2 {
		t.Fatalf("expected two online users, got %+v", ev)
	}
	expectEvent(t, ctx, bob, core.EventJoin)
	expectEvent(t, ctx, bob, core.EventOnlineList)

	// The live roster is also served over REST, straight from the registry.
	var online OnlineResponse
	getJSON(t, ts.URL+"/api/online?room=General", &online)
	if len(online.Users) != 2 {
		t.Fatalf("expected 2 users online via REST, got %+v", online)
	}

	if err := wsjson.Write(ctx, alice, core.Inbound{Type: core.InboundTypeChat, Content: "hi"}); err != nil {
		t.Fatalf("send chat: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		ev := expectEvent(t, ctx, conn, core.EventChat)
		if ev.Username != "alice" || ev.Content != "hi" || ev.Room != "General" {
			t.Fatalf("%s got unexpected chat event: %+v", name, ev)
		}
		if ev.Timestamp == "" {
			t.Fatalf("%s got chat without timestamp", name)
		}
		if _, err := time.Parse(time.RFC3339, ev.Timestamp); err != nil {
			t.Fatalf("%s got non-RFC3339 timestamp %q", name, ev.Timestamp)
		}
	}

	// History was persisted and is served oldest-first.
	var history MessagesResponse
	getJSON(t, ts.URL+"/api/messages?room=General", &history)
	if len(history.Messages) != 1 || history.Messages[0].Content != "hi" {
		t.Fatalf("unexpected history: %+v", history)
	}

	bob.Close(websocket.StatusNormalClosure, "leaving")

	if ev := expectEvent(t, ctx, alice, core.EventLeave); ev.Username != "bob" {
		t.Fatalf("unexpected leave event: %+v", ev)
	}
	if ev := expectEvent(t, ctx, alice, core.EventOnlineList); len(ev.Users) != 1 || ev.Users[0] != "alice" {
		t.Fatalf("expected only alice online, got %+v", ev)
	}
}

func TestWebSocketTyping(t *testing.T) {
	ts, _, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := wsDial(t, ctx, ts.URL, "Developers", "alice")
	expectEvent(t, ctx, alice, core.EventJoin)
	expectEvent(t, ctx, alice, core.EventOnlineList)

	// No flag defaults to typing.
	if err := wsjson.Write(ctx, alice, map[string]string{"type": "typing"}); err != nil {
		t.Fatalf("send typing: %v", err)
	}
	ev := expectEvent(t, ctx, alice, core.EventTyping)
	if ev.IsTyping == nil || !*ev.IsTyping {
		t.Fatalf("expected isTyping=true, got %+v", ev)
	}

	if err := wsjson.Write(ctx, alice, map[string]any{"type": "typing", "isTyping": false}); err != nil {
		t.Fatalf("send typing: %v", err)
	}
	ev = expectEvent(t, ctx, alice, core.EventTyping)
	if ev.IsTyping == nil || *ev.IsTyping {
		t.Fatalf("expected isTyping=false, got %+v", ev)
	}

	// A junk flag value falls back to typing rather than dropping the frame.
	if err := wsjson.Write(ctx, alice, map[string]any{"type": "typing", "isTyping": "yes"}); err != nil {
		t.Fatalf("send typing: %v", err)
	}
	ev = expectEvent(t, ctx, alice, core.EventTyping)
	if ev.IsTyping == nil || !*ev.IsTyping {
		t.Fatalf("expected isTyping=true, got %+v", ev)
	}
}

func TestWebSocketImplicitRoomCreation(t *testing.T) {
	ts, st, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := wsDial(t, ctx, ts.URL, "brand-new-room", "alice")
	expectEvent(t, ctx, conn, core.EventJoin)

	if _, err := st.GetRoomByName(ctx, "brand-new-room"); err != nil {
		t.Fatalf("expected room row to exist: %v", err)
	}
}
