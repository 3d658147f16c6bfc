package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/teamchat/teamchat-server/internal/config"
	"github.com/teamchat/teamchat-server/internal/core"
	"github.com/teamchat/teamchat-server/internal/store"
)

// NewServer builds the HTTP server: REST endpoints for login, room
// listing, history, and the live roster, plus the per-room WebSocket
// entry point.
func NewServer(registry *core.Registry, sessions *core.SessionHandler, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger), CORSMiddleware())

	router.GET("/health", healthHandler)

	api := NewAPIHandlers(registry, st, cfg.HistoryLimit, logger)
	router.POST("/api/login", api.Login)
	router.GET("/api/rooms", api.ListRooms)
	router.GET("/api/messages", api.ListMessages)
	router.GET("/api/online", api.Online)

	ws := NewWSHandler(sessions, logger)
	router.GET("/ws/:room", ws.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
