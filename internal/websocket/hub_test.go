package websocket

import (
	"context"
	"testing"
	"time"

	"tms-widget/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRoutesBySession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)

	a := &Client{Hub: hub, SessionId: "s1", Send: make(chan []byte, 1)}
	b := &Client{Hub: hub, SessionId: "s2", Send: make(chan []byte, 1)}
	hub.register <- a
	hub.register <- b
	require.Eventually(t, func() bool { return hub.Connected("s1") && hub.Connected("s2") }, time.Second, 5*time.Millisecond)

	hub.Send("s1", []byte("hello"))
	assert.Equal(t, "hello", string(<-a.Send))
	assert.Empty(t, b.Send)

	hub.unregister <- a
	require.Eventually(t, func() bool { return !hub.Connected("s1") }, time.Second, 5*time.Millisecond)
	_, open := <-a.Send
	assert.False(t, open)
}

func TestHubDropsSlowPeer(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())
	slow := &Client{Hub: hub, SessionId: "s1", Send: make(chan []byte)}
	hub.clients["s1"] = []*Client{slow}

	hub.Send("s1", []byte("dropped"))

	assert.False(t, hub.Connected("s1"))
	_, open := <-slow.Send
	assert.False(t, open)
}
