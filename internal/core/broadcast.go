package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster delivers one event to every connection of a room.
// Delivery is best-effort: a failed send marks the connection dead and
// never interrupts the sweep. Volume per room is expected to be small,
// so the sweep is synchronous rather than a fan-out worker pool; that is
// a documented scaling limit of this design.
type Broadcaster struct {
	registry    *Registry
	sendTimeout time.Duration
	log         *zerolog.Logger
}

// NewBroadcaster builds a broadcaster over the given registry.
// sendTimeout bounds each per-connection send so a hung peer surfaces as
// a delivery failure instead of stalling the sweep; zero disables it.
func NewBroadcaster(registry *Registry, sendTimeout time.Duration, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry:    registry,
		sendTimeout: sendTimeout,
		log:         logger,
	}
}

// Broadcast serializes the event once and sends it to every connection
// currently registered in the room, iterating a snapshot so concurrent
// joins and leaves cannot corrupt the sweep. Connections that fail the
// send are pruned from the registry in a single batch afterwards.
func (b *Broadcaster) Broadcast(ctx context.Context, room string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Error().Err(err).Str("room", room).Str("type", string(ev.Type)).Msg("marshal event")
		return
	}

	conns, _ := b.registry.Snapshot(room)
	if len(conns) == 0 {
		return
	}

	var dead []Conn
	for _, c := range conns {
		if err := b.send(ctx, c, data); err != nil {
			b.log.Debug().Err(err).Str("conn_id", c.ID()).Str("room", room).Msg("send failed, marking connection dead")
			dead = append(dead, c)
		}
	}

	if len(dead) > 0 {
		b.registry.Prune(room, dead)
		b.log.Info().Str("room", room).Int("pruned", len(dead)).Msg("pruned dead connections")
	}
}

func (b *Broadcaster) send(ctx context.Context, c Conn, data []byte) error {
	if b.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.sendTimeout)
		defer cancel()
	}
	return c.Send(ctx, data)
}
