package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mangahub/internal/core"
	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

// Handler upgrades authenticated chat requests into hub sessions.
type Handler struct {
	hub      *Hub
	auth     core.AuthService
	upgrader websocket.Upgrader
}

// NewHandler creates the chat upgrade handler. allowedOrigins of ["*"]
// disables the origin check (dev default).
func NewHandler(hub *Hub, auth core.AuthService, allowedOrigins []string) *Handler {
	allowAll := false
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = true
	}

	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				return originSet[r.Header.Get("Origin")]
			},
		},
	}
}

// extractToken looks for a bearer token in the query string first (the
// browser WebSocket API cannot set headers), then the Authorization
// header.
func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// HandleChat validates the token, upgrades the connection and hands it
// to the hub. Invalid tokens are refused before the upgrade.
func (h *Handler) HandleChat(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, models.Fail("missing token"))
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.Fail("invalid or expired token"))
		return
	}

	room := c.Query("room")
	if room == "" {
		room = models.GeneralRoom
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("chat upgrade failed for %s: %v", claims.Username, err)
		return
	}

	h.hub.Join(conn, room, claims.UserID, claims.Username)
}

// HandleRoomStatus reports room membership over plain HTTP.
func (h *Handler) HandleRoomStatus(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		c.JSON(http.StatusBadRequest, models.Fail("room is required"))
		return
	}
	c.JSON(http.StatusOK, models.OK("room status", h.hub.RoomStatus(room)))
}
