package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tms-widget/internal/bootstrap"
	"tms-widget/internal/config"
	"tms-widget/internal/pkg/logger"
	"tms-widget/internal/widget"
	"tms-widget/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := &config.Config{App: config.AppConfig{Port: "0", CorsAllowedOrigins: "*"}}

	container, err := bootstrap.NewContainer(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, container.Start(ctx))

	srv := New(cfg, container)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
		container.Close()
	})
	return srv, "http://" + ln.Addr().String() + "/api"
}

func TestHealth(t *testing.T) {
	srv, _ := startServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWidgetAgainstDevServer(t *testing.T) {
	_, apiURL := startServer(t)

	w, err := widget.New(config.WidgetConfig{
		APIURL:   apiURL,
		WidgetID: "demo-widget",
		Domain:   "localhost",
	})
	require.NoError(t, err)
	defer w.Destroy()

	var (
		mu   sync.Mutex
		seen []events.Event
	)
	for _, typ := range []string{events.TypeSessionStarted, events.TypeMessageSent, events.TypeAgentJoined, events.TypeMessageReceived} {
		w.On(typ, func(e events.Event) {
			mu.Lock()
			seen = append(seen, e)
			mu.Unlock()
		})
	}
	waitFor := func(eventType string) events.Event {
		t.Helper()
		var found events.Event
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			for _, e := range seen {
				if e.EventType() == eventType {
					found = e
					return true
				}
			}
			return false
		}, 5*time.Second, 20*time.Millisecond, "waiting for %s", eventType)
		return found
	}

	require.NoError(t, w.Init(context.Background()))
	assert.Equal(t, "Demo Support", w.Config().Name)

	w.Open()
	waitFor(events.TypeSessionStarted)
	require.Eventually(t, w.IsConnected, 5*time.Second, 20*time.Millisecond)

	w.SetInput("hello from the terminal")
	require.NoError(t, w.SendMessage())
	waitFor(events.TypeMessageSent)

	joined := waitFor(events.TypeAgentJoined)
	assert.Equal(t, "Alex", joined.Payload()["agent_name"])

	reply := waitFor(events.TypeMessageReceived)
	assert.Equal(t, "agent", reply.Payload()["author_type"])

	// The optimistic message was replaced by the server echo.
	require.Eventually(t, func() bool {
		for _, m := range w.Messages() {
			if m.Content == "hello from the terminal" && !strings.HasPrefix(m.Id, "temp-") {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}
