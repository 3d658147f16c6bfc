package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamchat/teamchat-server/internal/config"
	"github.com/teamchat/teamchat-server/internal/core"
	"github.com/teamchat/teamchat-server/internal/store"
	"github.com/teamchat/teamchat-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with the default
// rooms seeded.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for _, name := range []string{"General", "Developers", "HR"} {
		if _, err := st.EnsureRoom(ctx, name); err != nil {
			t.Fatalf("failed to seed room %q: %v", name, err)
		}
	}

	return st
}

// startTestServer wires the full stack over an in-memory store and
// returns the running test server plus the pieces tests poke at.
func startTestServer(t *testing.T) (*httptest.Server, store.Store, *core.Registry) {
	t.Helper()

	logger := zerolog.Nop()
	st := createTestStore(t)

	registry := core.NewRegistry()
	broadcaster := core.NewBroadcaster(registry, time.Second, &logger)
	presence := core.NewPresence(registry, broadcaster)
	sessions := core.NewSessionHandler(presence, broadcaster, st, &logger)

	cfg := config.Default()
	cfg.Addr = ":0"

	server := NewServer(registry, sessions, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, st, registry
}
