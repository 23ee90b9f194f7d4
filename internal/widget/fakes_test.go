package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tms-widget/internal/config"
	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/repository/memory"
	"tms-widget/internal/storage"
	"tms-widget/internal/transport"
	"tms-widget/pkg/events"
	"tms-widget/pkg/fingerprint"

	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns live timers scheduled with delay d.
func (c *fakeClock) pending(d time.Duration) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if t.delay == d && !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the only live timer with delay d.
func (c *fakeClock) fire(t *testing.T, d time.Duration) {
	t.Helper()
	live := c.pending(d)
	require.Len(t, live, 1, "expected one live %s timer", d)
	c.mu.Lock()
	live[0].stopped = true
	c.mu.Unlock()
	live[0].fn()
}

type fakeConn struct {
	mu      sync.Mutex
	url     string
	h       transport.Handlers
	sent    [][]byte
	closed  bool
	sendErr error
	onClose func()
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	hook := c.onClose
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) frames(t *testing.T) []dto.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dto.Envelope, 0, len(c.sent))
	for _, raw := range c.sent {
		var env dto.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) frameTypes(t *testing.T) []string {
	var types []string
	for _, f := range c.frames(t) {
		types = append(types, f.Type)
	}
	return types
}

func (c *fakeConn) deliver(t *testing.T, frameType string, data interface{}) {
	t.Helper()
	env, err := dto.NewEnvelope(frameType, "", data)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	c.h.OnMessage(raw)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(url string, h transport.Handlers) transport.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeConn{url: url, h: h}
	d.conns = append(d.conns, c)
	return c
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) last(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.conns, "no socket dialed")
	return d.conns[len(d.conns)-1]
}

type fakeAPI struct {
	mu         sync.Mutex
	widget     *entity.WidgetConfig
	widgetErr  error
	initErr    error
	requests   []dto.InitiateChatRequest
	markedRead chan string
}

func (a *fakeAPI) GetWidgetByDomain(ctx context.Context, domain string) (*entity.WidgetConfig, error) {
	if a.widgetErr != nil {
		return nil, a.widgetErr
	}
	c := *a.widget
	return &c, nil
}

func (a *fakeAPI) InitiateChat(ctx context.Context, widgetId string, req dto.InitiateChatRequest) (*dto.InitiateChatResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.initErr != nil {
		return nil, a.initErr
	}
	n := len(a.requests)
	return &dto.InitiateChatResponse{
		SessionToken: fmt.Sprintf("tok-%d", n),
		SessionId:    fmt.Sprintf("sess-%d", n),
	}, nil
}

func (a *fakeAPI) MarkMessagesAsRead(ctx context.Context, sessionId string) error {
	a.markedRead <- sessionId
	return errors.New("not found")
}

func (a *fakeAPI) WebSocketURL(sessionToken, widgetId string) string {
	return "ws://backend.test/public/chat/ws/widgets/" + widgetId + "/chat/" + sessionToken
}

func (a *fakeAPI) initiated() []dto.InitiateChatRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]dto.InitiateChatRequest(nil), a.requests...)
}

type recordingView struct {
	mu     sync.Mutex
	last   ViewState
	sounds []string
	focus  []string
}

func (v *recordingView) Render(s ViewState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = s
}

func (v *recordingView) PlaySound(kind string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sounds = append(v.sounds, kind)
}

func (v *recordingView) Focus(field string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.focus = append(v.focus, field)
}

func (v *recordingView) lastFocus() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.focus) == 0 {
		return ""
	}
	return v.focus[len(v.focus)-1]
}

func (v *recordingView) soundLog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.sounds...)
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) of(eventType string) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, ev := range l.events {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	w      *Widget
	api    *fakeAPI
	dialer *fakeDialer
	clock  *fakeClock
	view   *recordingView
	store  *storage.Manager
	events *eventLog
}

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func baseWidgetConfig() *entity.WidgetConfig {
	return &entity.WidgetConfig{
		Id:             "w1",
		Name:           "Support",
		PrimaryColor:   "#2563eb",
		Position:       "bottom-right",
		WelcomeMessage: "Hi there! How can we help?",
		AgentName:      "Sam",
		SoundEnabled:   true,
		ShowPoweredBy:  true,
	}
}

func newHarness(t *testing.T, cfg *entity.WidgetConfig, setup ...func(*harness)) *harness {
	t.Helper()
	h := &harness{
		api:    &fakeAPI{widget: cfg, markedRead: make(chan string, 4)},
		dialer: &fakeDialer{},
		clock:  &fakeClock{now: testNow},
		view:   &recordingView{},
		events: &eventLog{},
	}
	h.store = storage.NewManager(memory.NewKeyValueStore(), "w1", storage.WithClock(h.clock.Now))
	for _, fn := range setup {
		fn(h)
	}

	w, err := New(config.WidgetConfig{
		APIURL:                   "http://backend.test/api",
		WidgetID:                 "w1",
		Domain:                   "example.com",
		EnableSessionPersistence: true,
	},
		WithAPI(h.api),
		WithDialer(h.dialer),
		WithClock(h.clock),
		WithView(h.view),
		WithStorage(h.store),
		WithEnvironment(fingerprint.Environment{UserAgent: "test-agent", Language: "en-US", Timezone: "UTC"}),
	)
	require.NoError(t, err)
	h.w = w

	for _, typ := range []string{
		events.TypeError, events.TypeSessionStarted, events.TypeMessageReceived,
		events.TypeMessageSent, events.TypeAgentJoined, events.TypeAgentTyping,
	} {
		w.On(typ, h.events.record)
	}
	return h
}

// connected initializes, opens and completes the socket handshake.
func (h *harness) connected(t *testing.T) *fakeConn {
	t.Helper()
	require.NoError(t, h.w.Init(context.Background()))
	h.w.Open()
	conn := h.dialer.last(t)
	conn.h.OnOpen()
	require.True(t, h.w.IsConnected())
	return conn
}

func agentMessage(id, content string) entity.ChatMessage {
	return entity.ChatMessage{
		Id:          id,
		Content:     content,
		AuthorType:  entity.AuthorAgent,
		AuthorName:  "Sam",
		CreatedAt:   "2024-01-01T10:00:01.000Z",
		MessageType: entity.MessageTypeText,
	}
}

func transcriptIds(s ViewState) []string {
	var ids []string
	for _, m := range s.Transcript {
		ids = append(ids, m.Id)
	}
	return ids
}
