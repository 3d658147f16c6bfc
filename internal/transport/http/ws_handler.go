package http

import (
	"context"
	"errors"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/teamchat/teamchat-server/internal/core"
	"github.com/teamchat/teamchat-server/internal/utils"
)

// WSHandler upgrades HTTP connections and hands them to the session
// handler, which blocks for the connection's lifetime.
type WSHandler struct {
	sessions *core.SessionHandler
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(sessions *core.SessionHandler, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{sessions: sessions, log: logger}
}

// Handle serves GET /ws/:room?username=NAME.
func (h *WSHandler) Handle(c *gin.Context) {
	room := c.Param("room")
	username := c.Query("username")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	wc := newWSConn(conn)
	if err := h.sessions.HandleSession(c.Request.Context(), wc, room, username); err != nil {
		if errors.Is(err, core.ErrUsernameRequired) {
			h.log.Debug().Str("room", room).Msg("rejected session without username")
		} else {
			h.log.Warn().Err(err).Str("conn_id", wc.ID()).Str("room", room).Msg("session setup failed")
		}
		return
	}

	conn.Close(websocket.StatusNormalClosure, "closing")
}

// wsConn adapts *websocket.Conn to core.Conn.
type wsConn struct {
	id   string
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{id: utils.NewID(), conn: conn}
}

func (w *wsConn) ID() string {
	return w.id
}

func (w *wsConn) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	return data, err
}

func (w *wsConn) Send(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close(code core.CloseCode) error {
	return w.conn.Close(websocket.StatusCode(code), closeReason(code))
}

func closeReason(code core.CloseCode) string {
	switch code {
	case core.ClosePolicyViolation:
		return "username required"
	case core.CloseInternalError:
		return "internal error"
	default:
		return "closing"
	}
}
