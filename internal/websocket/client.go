package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// MessageHandler receives each inbound frame of a session.
type MessageHandler func(sessionId, widgetId string, data []byte)

// Conn is the part of *websocket.Conn the pumps use.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn Conn

	SessionId string
	WidgetId  string

	// Buffered channel of outbound frames.
	Send chan []byte

	onMessage MessageHandler

	// stop is closed when the read side ends; done when writePump returns.
	stop chan struct{}
	done chan struct{}
}

func newClient(hub *Hub, conn Conn, sessionId, widgetId string, onMessage MessageHandler) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		SessionId: sessionId,
		WidgetId:  widgetId,
		Send:      make(chan []byte, 256),
		onMessage: onMessage,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// serve pumps frames until the peer goes away. It returns only after
// writePump has stopped touching the connection, since the caller hands
// the connection back to its pool.
func (c *Client) serve() {
	select {
	case c.Hub.register <- c:
	case <-c.Hub.done:
		c.Conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
	<-c.done
}

// readPump feeds inbound frames to the message handler.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		close(c.stop)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("Hub", "Unexpected close", map[string]interface{}{
					"session_id": c.SessionId,
					"error":      err.Error(),
				})
			}
			break
		}
		if c.onMessage != nil {
			c.onMessage(c.SessionId, c.WidgetId, data)
		}
	}
}

// writePump writes one frame per websocket message; the widget parses each
// message as a single envelope. It is the only goroutine that closes Conn.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.stop:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
