package gateway

import (
	"net/http"
	"strings"
	"time"

	"supportdesk/internal/auth"
	"supportdesk/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the edge proxy; donor web clients connect from
	// arbitrary embed origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS returns the gin handler that upgrades connections into hub clients.
//
// A bearer token (Authorization header or ?token=) tags the connection with
// agent identity. A missing or invalid token does NOT reject the connection:
// it stays anonymous, which is how unauthenticated donor clients connect.
func ServeWS(h *Hub, m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID, role string
		elevated := false

		if tok := bearerToken(c); tok != "" && m != nil {
			claims, err := m.Verify(tok, auth.TokenTypeAccess, time.Now())
			if err != nil {
				h.log.Debug("gateway token rejected, connection stays anonymous", "err", err)
			} else {
				userID = claims.UserID
				role = claims.Role
				elevated = rbac.IsElevated(claims.Role)
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote an HTTP error.
			h.log.Debug("gateway upgrade failed", "err", err)
			return
		}

		client := newClient(h, conn, userID, role, elevated)
		h.register(client)

		go client.writePump()
		go client.readPump()
	}
}

func bearerToken(c *gin.Context) string {
	raw := c.GetHeader("Authorization")
	if strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimPrefix(raw, "Bearer ")
	}
	return c.Query("token")
}
