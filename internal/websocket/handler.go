package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the peer and pumps frames until the connection ends.
// It returns once both pumps are done with c.
func ServeWs(hub *Hub, c *websocket.Conn, sessionId, widgetId string, onMessage MessageHandler) {
	newClient(hub, c, sessionId, widgetId, onMessage).serve()
}
