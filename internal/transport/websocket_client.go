// Package transport dials the chat WebSocket. Connections report their
// lifecycle through callbacks, the same way a browser socket does: Dial
// returns at once, and open, message, error and close arrive later from the
// connection's own goroutines.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tms-widget/internal/pkg/logger"

	"github.com/gorilla/websocket"
)

const moduleName = "TRANSPORT"

// Close codes reported to OnClose when the peer did not send one.
const (
	CloseNormal   = websocket.CloseNormalClosure
	CloseAbnormal = websocket.CloseAbnormalClosure
)

var ErrNotOpen = errors.New("websocket is not open")

// Handlers receive connection events. Any of them may be nil. OnClose is
// called exactly once per connection, after OnError when there was one.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(code int, reason string)
}

// Conn is an open or opening connection.
type Conn interface {
	Send(data []byte) error
	Close() error
}

type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PongWait         time.Duration
	PingInterval     time.Duration
	ReadLimit        int64
	Header           http.Header
}

func DefaultOptions() *Options {
	return &Options{
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     10 * time.Second,
		PongWait:         60 * time.Second,
		PingInterval:     30 * time.Second,
		ReadLimit:        1 << 20,
	}
}

type Dialer struct {
	opts   *Options
	dialer *websocket.Dialer
	logger logger.ILogger
}

func NewDialer(opts *Options, log logger.ILogger) *Dialer {
	if opts == nil {
		opts = DefaultOptions()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Dialer{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		logger: log,
	}
}

// Dial starts connecting to url in the background.
func (d *Dialer) Dial(url string, h Handlers) Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		opts:     d.opts,
		handlers: h,
		logger:   d.logger,
		cancel:   cancel,
	}
	go c.run(ctx, d.dialer, url)
	return c
}

type conn struct {
	opts     *Options
	handlers Handlers
	logger   logger.ILogger
	cancel   context.CancelFunc

	mu      sync.Mutex
	ws      *websocket.Conn
	closing bool

	writeMu sync.Mutex
}

func (c *conn) run(ctx context.Context, dialer *websocket.Dialer, url string) {
	ws, _, err := dialer.DialContext(ctx, url, c.opts.Header)
	if err != nil {
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if closing {
			c.emitClose(CloseNormal, "")
			return
		}
		c.logger.Warn(moduleName, "WebSocket dial failed", map[string]interface{}{"error": err.Error()})
		c.emitError(fmt.Errorf("websocket dial failed: %w", err))
		c.emitClose(CloseAbnormal, "")
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		ws.Close()
		c.emitClose(CloseNormal, "")
		return
	}
	c.ws = ws
	c.mu.Unlock()

	ws.SetReadLimit(c.opts.ReadLimit)
	ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	if c.handlers.OnOpen != nil {
		c.handlers.OnOpen()
	}

	go c.pingLoop(ctx, ws)
	c.readLoop(ws)
	c.cancel()
}

func (c *conn) readLoop(ws *websocket.Conn) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			ws.Close()
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(data)
		}
	}
}

func (c *conn) handleReadError(err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		c.emitClose(closeErr.Code, closeErr.Text)
		return
	}

	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing {
		c.emitClose(CloseNormal, "")
		return
	}

	c.emitError(err)
	c.emitClose(CloseAbnormal, err.Error())
}

func (c *conn) pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				ws.Close()
				return
			}
		}
	}
}

func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	ws, closing := c.ws, c.closing
	c.mu.Unlock()
	if ws == nil || closing {
		return ErrNotOpen
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Close starts the closing handshake. It never calls handlers itself; OnClose
// follows from the read loop.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		c.cancel()
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout))
	c.writeMu.Unlock()
	if err != nil {
		return ws.Close()
	}

	// The peer echoes the close frame; give up on it after the write timeout.
	time.AfterFunc(c.opts.WriteTimeout, func() { ws.Close() })
	return nil
}

func (c *conn) emitError(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

func (c *conn) emitClose(code int, reason string) {
	if c.handlers.OnClose != nil {
		c.handlers.OnClose(code, reason)
	}
}
