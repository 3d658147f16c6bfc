package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/teamchat/teamchat-server/internal/core"
)

// Interactive terminal client: each stdin line is sent as a chat
// message; incoming events are printed as they arrive.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "ws://localhost:8080", "server base address")
	user := flag.String("user", "", "username to connect with")
	room := flag.String("room", "General", "room name")
	flag.Parse()

	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := fmt.Sprintf("%s/ws/%s?username=%s", *base, url.PathEscape(*room), url.QueryEscape(*user))
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	go func() {
		for {
			var ev core.Event
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				log.Printf("connection closed: %v", err)
				cancel()
				return
			}
			printEvent(ev)
		}
	}()

	fmt.Printf("connected to %s as %s, type to chat\n", *room, *user)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			return nil
		}
		if err := wsjson.Write(ctx, conn, core.Inbound{Type: core.InboundTypeChat, Content: text}); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return scanner.Err()
}

func printEvent(ev core.Event) {
	switch ev.Type {
	case core.EventChat:
		fmt.Printf("[%s] %s: %s\n", ev.Timestamp, ev.Username, ev.Content)
	case core.EventJoin:
		fmt.Printf("* %s joined %s\n", ev.Username, ev.Room)
	case core.EventLeave:
		fmt.Printf("* %s left %s\n", ev.Username, ev.Room)
	case core.EventTyping:
		if ev.IsTyping != nil && *ev.IsTyping {
			fmt.Printf("* %s is typing...\n", ev.Username)
		}
	case core.EventOnlineList:
		fmt.Printf("* online: %s\n", strings.Join(ev.Users, ", "))
	}
}
