package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cypherarest/poscore/internal/auth"
	"github.com/cypherarest/poscore/internal/logger"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// UpgradeHandler accepts the WebSocket upgrade for the path's restaurant_id
// and connection kind, then hands the connection to the hub's auth-frame
// handshake (§4.6): the bearer token travels in a post-upgrade `auth` frame,
// not the HTTP upgrade request, so the 5-second auth deadline and the 4401
// close code are enforced by the hub, not this handler.
func UpgradeHandler(hub *Hub, verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		restaurantID, err := uuid.Parse(c.Param("restaurantId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": "invalid_restaurant_id"}})
			return
		}
		kind := ConnKind(c.DefaultQuery("kind", string(ConnPOS)))
		switch kind {
		case ConnPOS, ConnKitchen, ConnManagement:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": "invalid_connection_kind"}})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := hub.newConn(ws, verifier, restaurantID, kind, c.ClientIP())
		conn.runAuthThenServe(c.Request.Context())
	}
}
