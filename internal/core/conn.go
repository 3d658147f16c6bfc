package core

import "context"

// CloseCode mirrors the WebSocket close status codes the core cares about.
type CloseCode int

const (
	// CloseNormal signals a clean end of session.
	CloseNormal CloseCode = 1000
	// ClosePolicyViolation signals the client failed connect-time validation.
	ClosePolicyViolation CloseCode = 1008
	// CloseInternalError signals a server-side failure during setup.
	CloseInternalError CloseCode = 1011
)

// Conn is one client's bidirectional channel as seen by the core layer.
// The transport layer owns the underlying socket; the core only registers
// the handle and pushes serialized events through it.
type Conn interface {
	// ID identifies the connection for logging. Stable for the connection's lifetime.
	ID() string

	// Receive blocks until the next inbound frame or a disconnect.
	// A non-nil error means the connection is gone.
	Receive(ctx context.Context) ([]byte, error)

	// Send delivers one serialized event. A non-nil error means the
	// connection should be considered dead.
	Send(ctx context.Context, data []byte) error

	// Close terminates the connection with the given status code.
	Close(code CloseCode) error
}
