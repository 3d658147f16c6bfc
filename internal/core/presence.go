package core

import (
	"context"
	"sync"
)

// Presence keeps the who-is-online view in step with membership. Every
// join or leave produces exactly two broadcasts, in a fixed order:
// the Join/Leave announcement, then a fresh OnlineList. There is no
// debouncing of rapid membership churn.
type Presence struct {
	// mu serializes announce operations so the broadcast order seen by a
	// room matches the order the registry mutations were applied.
	mu          sync.Mutex
	registry    *Registry
	broadcaster *Broadcaster
}

// NewPresence builds a presence tracker over the registry and broadcaster.
func NewPresence(registry *Registry, broadcaster *Broadcaster) *Presence {
	return &Presence{registry: registry, broadcaster: broadcaster}
}

// Join registers the connection and announces the arrival followed by
// the updated roster. A duplicate registration announces nothing.
func (p *Presence) Join(ctx context.Context, room string, conn Conn, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.registry.Join(room, conn, username) {
		return
	}
	p.broadcaster.Broadcast(ctx, room, JoinEvent(room, username))
	p.announceRoster(ctx, room)
}

// Leave deregisters the connection and announces the departure followed
// by the updated roster. If nothing was actually removed (the session
// already left), no broadcast fires.
func (p *Presence) Leave(ctx context.Context, room string, conn Conn, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.registry.Leave(room, conn, username) {
		return
	}
	p.broadcaster.Broadcast(ctx, room, LeaveEvent(room, username))
	p.announceRoster(ctx, room)
}

func (p *Presence) announceRoster(ctx context.Context, room string) {
	_, users := p.registry.Snapshot(room)
	p.broadcaster.Broadcast(ctx, room, OnlineListEvent(room, users))
}
