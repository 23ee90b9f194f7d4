package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tms-widget/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConn replays inbound frames, then fails reads. Writes are slow so
// a pump that outlives serve would still be writing when serve returns.
type scriptedConn struct {
	mu       sync.Mutex
	inbound  [][]byte
	writes   []int
	closed   bool
	released bool
	misuse   []string
}

func (c *scriptedConn) touch(op string) {
	if c.released {
		c.misuse = append(c.misuse, op)
	}
}

func (c *scriptedConn) SetReadLimit(int64)                {}
func (c *scriptedConn) SetReadDeadline(time.Time) error   { return nil }
func (c *scriptedConn) SetPongHandler(func(string) error) {}
func (c *scriptedConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch("SetWriteDeadline")
	return nil
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		return 0, nil, errors.New("connection reset")
	}
	data := c.inbound[0]
	c.inbound = c.inbound[1:]
	return websocket.TextMessage, data, nil
}

func (c *scriptedConn) WriteMessage(messageType int, _ []byte) error {
	time.Sleep(20 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch("WriteMessage")
	c.writes = append(c.writes, messageType)
	return nil
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch("Close")
	c.closed = true
	return nil
}

// release marks the point where the server framework reclaims the connection.
func (c *scriptedConn) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
}

func TestServeWaitsForWriterBeforeReturning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)

	var (
		mu       sync.Mutex
		received []string
	)
	conn := &scriptedConn{inbound: [][]byte{[]byte("one"), []byte("two")}}
	client := newClient(hub, conn, "s1", "w1", func(sessionId, widgetId string, data []byte) {
		mu.Lock()
		received = append(received, sessionId+"/"+widgetId+":"+string(data))
		mu.Unlock()
	})

	client.serve()
	conn.release()

	// Give a leaked writer the chance to misbehave.
	time.Sleep(50 * time.Millisecond)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Empty(t, conn.misuse)
	assert.True(t, conn.closed)
	require.NotEmpty(t, conn.writes)
	assert.Equal(t, websocket.CloseMessage, conn.writes[len(conn.writes)-1])
	assert.False(t, hub.Connected("s1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"s1/w1:one", "s1/w1:two"}, received)
}

func TestServeWithStoppedHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, logger.NewNopLogger())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	conn := &scriptedConn{}
	finished := make(chan struct{})
	go func() {
		newClient(hub, conn, "s1", "w1", nil).serve()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("serve blocked on a stopped hub")
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
}
