package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/teamchat/teamchat-server/internal/core"
	"github.com/teamchat/teamchat-server/internal/store"
)

// APIHandlers provides HTTP handlers for the REST endpoints.
type APIHandlers struct {
	registry     *core.Registry
	store        store.Store
	historyLimit int
	log          *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(registry *core.Registry, st store.Store, historyLimit int, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		registry:     registry,
		store:        st,
		historyLimit: historyLimit,
		log:          logger,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
}

// LoginResponse represents the login response body.
type LoginResponse struct {
	OK       bool   `json:"ok"`
	Username string `json:"username"`
}

// RoomsResponse represents the room list response body.
type RoomsResponse struct {
	Rooms []string `json:"rooms"`
}

// MessageResponse represents one history entry.
type MessageResponse struct {
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Room      string `json:"room"`
}

// MessagesResponse represents the history response body.
type MessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

// OnlineResponse represents the live roster response body.
type OnlineResponse struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Login ensures the user exists and echoes the username back.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username required"})
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username required"})
		return
	}

	if _, err := h.store.EnsureUser(c.Request.Context(), username); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to ensure user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", username).Msg("user logged in")
	c.JSON(http.StatusOK, LoginResponse{OK: true, Username: username})
}

// ListRooms lists all known room names, sorted ascending.
// GET /api/rooms
func (h *APIHandlers) ListRooms(c *gin.Context) {
	names, err := h.store.ListRoomNames(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, RoomsResponse{Rooms: names})
}

// ListMessages serves recent history of a room, oldest-first.
// GET /api/messages?room=General&limit=50
func (h *APIHandlers) ListMessages(c *gin.Context) {
	roomName := c.Query("room")
	if roomName == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room is required"})
		return
	}

	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	room, err := h.store.GetRoomByName(c.Request.Context(), roomName)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room", roomName).Msg("failed to look up room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	msgs, err := h.store.RecentMessages(c.Request.Context(), room.ID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomName).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, MessageResponse{
			Username:  m.Username,
			Content:   m.Content,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
			Room:      roomName,
		})
	}

	c.JSON(http.StatusOK, MessagesResponse{Messages: response})
}

// Online serves the live roster of a room from the registry, not storage.
// GET /api/online?room=General
func (h *APIHandlers) Online(c *gin.Context) {
	roomName := c.Query("room")
	if roomName == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room is required"})
		return
	}

	_, users := h.registry.Snapshot(roomName)
	if users == nil {
		users = []string{}
	}

	c.JSON(http.StatusOK, OnlineResponse{Room: roomName, Users: users})
}
