package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/teamchat/teamchat-server/internal/core"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "ws://localhost:8080", "server base address")
	user := flag.String("user", "tester", "username to connect with")
	room := flag.String("room", "General", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	wsURL := fmt.Sprintf("%s/ws/%s?username=%s", *base, url.PathEscape(*room), url.QueryEscape(*user))
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, core.Inbound{Type: core.InboundTypeChat, Content: *text}); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}

	for {
		var ev core.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch ev.Type {
		case core.EventJoin:
			fmt.Printf("join: room=%s user=%s\n", ev.Room, ev.Username)
		case core.EventLeave:
			fmt.Printf("leave: room=%s user=%s\n", ev.Room, ev.Username)
		case core.EventOnlineList:
			fmt.Printf("online: room=%s users=%v\n", ev.Room, ev.Users)
		case core.EventChat:
			fmt.Printf("chat: room=%s user=%s text=%q ts=%s\n", ev.Room, ev.Username, ev.Content, ev.Timestamp)
			return nil
		default:
			fmt.Printf("event: type=%s\n", ev.Type)
		}
	}
}
