package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/pkg/logger"
	"tms-widget/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu     sync.Mutex
	frames map[string][]dto.Envelope
	notify chan struct{}
}

func newRecordingHub() *recordingHub {
	return &recordingHub{frames: make(map[string][]dto.Envelope), notify: make(chan struct{}, 64)}
}

func (h *recordingHub) Send(sessionId string, data []byte) {
	var env dto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		panic(err)
	}
	h.mu.Lock()
	h.frames[sessionId] = append(h.frames[sessionId], env)
	h.mu.Unlock()
	h.notify <- struct{}{}
}

func (h *recordingHub) sent(sessionId string) []dto.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dto.Envelope(nil), h.frames[sessionId]...)
}

func (h *recordingHub) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d of %d", i+1, n)
		}
	}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { ps.Close() })
	return ps
}

func chatFrame(t *testing.T, content string) []byte {
	t.Helper()
	env, err := dto.NewEnvelope(dto.FrameChatMessage, "s1", dto.OutboundChatMessage{
		Content:     content,
		MessageType: entity.MessageTypeText,
		AuthorType:  entity.AuthorVisitor,
		AuthorName:  "Jane",
	})
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestWidgetRegistry(t *testing.T) {
	widgets := []entity.WidgetConfig{
		{Id: "w1", Name: "Shop", DomainUrl: "https://www.shop.example/path", IsActive: true},
		{Id: "w2", Name: "blog.example", IsActive: true},
		{Id: "w3", Name: "Off", DomainUrl: "off.example", IsActive: false},
	}
	reg := NewWidgetRegistryService(widgets)

	tests := []struct {
		domain string
		wantId string
	}{
		{"shop.example", "w1"},
		{"SHOP.example", "w1"},
		{"http://shop.example:443", "w1"},
		{"blog.example", "w2"},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			w, err := reg.GetByDomain(tt.domain)
			require.NoError(t, err)
			assert.Equal(t, tt.wantId, w.Id)
		})
	}

	_, err := reg.GetByDomain("off.example")
	assert.ErrorIs(t, err, ErrWidgetNotFound)
	_, err = reg.GetByDomain("unknown.example")
	assert.ErrorIs(t, err, ErrWidgetNotFound)

	w, err := reg.GetById("w2")
	require.NoError(t, err)
	assert.Equal(t, "blog.example", w.Name)
	_, err = reg.GetById("w3")
	assert.ErrorIs(t, err, ErrWidgetNotFound)
}

func TestLoadWidgets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widgets.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"w1","name":"Shop","is_active":true,"agent_name":"Sam"}]`), 0o600))

	widgets, err := LoadWidgets(path)
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, "Sam", widgets[0].AgentName)

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	_, err = LoadWidgets(path)
	assert.Error(t, err)

	_, err = LoadWidgets(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestChatServiceEchoesVisitorMessage(t *testing.T) {
	hub := newRecordingHub()
	ps := newPubSub(t)
	bus := &recordingEvents{}
	chat := NewChatService(hub, NewPublisherService(VisitorMessageTopic, ps), bus, logger.NewNopLogger())

	published, err := ps.Subscribe(context.Background(), VisitorMessageTopic)
	require.NoError(t, err)

	chat.HandleInbound("s1", "w1", chatFrame(t, "hello"))
	hub.waitFor(t, 1)

	frames := hub.sent("s1")
	require.Len(t, frames, 1)
	assert.Equal(t, dto.FrameChatMessage, frames[0].Type)

	var echoed entity.ChatMessage
	require.NoError(t, frames[0].Decode(&echoed))
	assert.NotEmpty(t, echoed.Id)
	assert.NotEmpty(t, echoed.CreatedAt)
	assert.Equal(t, "hello", echoed.Content)
	assert.Equal(t, entity.AuthorVisitor, echoed.AuthorType)

	select {
	case msg := <-published:
		var evt dto.VisitorMessageEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &evt))
		assert.Equal(t, "s1", evt.SessionId)
		assert.Equal(t, "w1", evt.WidgetId)
		assert.Equal(t, echoed.Id, evt.Message.Id)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("visitor message was not published")
	}

	assert.Equal(t, []string{events.TypeChatMessageCreated}, bus.types())
}

func TestChatServiceRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr string
	}{
		{"empty content", `{"type":"chat_message","data":{"content":"  "}}`, "Message content is required"},
		{"unknown type", `{"type":"bogus","data":{}}`, "Unsupported message type: bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newRecordingHub()
			chat := NewChatService(hub, NewPublisherService(VisitorMessageTopic, newPubSub(t)), nil, logger.NewNopLogger())

			chat.HandleInbound("s1", "w1", []byte(tt.frame))
			hub.waitFor(t, 1)

			frames := hub.sent("s1")
			require.Len(t, frames, 1)
			assert.Equal(t, dto.FrameError, frames[0].Type)
			var data dto.ErrorData
			require.NoError(t, frames[0].Decode(&data))
			assert.Equal(t, tt.wantErr, data.Error)
		})
	}

	t.Run("ignored frames", func(t *testing.T) {
		hub := newRecordingHub()
		chat := NewChatService(hub, NewPublisherService(VisitorMessageTopic, newPubSub(t)), nil, logger.NewNopLogger())

		chat.HandleInbound("s1", "w1", []byte(`not json`))
		chat.HandleInbound("s1", "w1", []byte(`{"type":"typing_start","data":{"author_type":"visitor"}}`))
		chat.HandleInbound("s1", "w1", []byte(`{"type":"message_read","data":{"message_id":"m1","read_by":"visitor"}}`))
		assert.Empty(t, hub.sent("s1"))
	})
}

func TestChatServiceMarkRead(t *testing.T) {
	hub := newRecordingHub()
	bus := &recordingEvents{}
	chat := NewChatService(hub, NewPublisherService(VisitorMessageTopic, newPubSub(t)), bus, logger.NewNopLogger())

	require.NoError(t, chat.Deliver("s1", entity.ChatMessage{Content: "a", AuthorType: entity.AuthorAgent}))
	require.NoError(t, chat.Deliver("s1", entity.ChatMessage{Content: "b", AuthorType: entity.AuthorAIAgent}))
	require.NoError(t, chat.Deliver("s1", entity.ChatMessage{Content: "c", AuthorType: entity.AuthorVisitor}))
	hub.waitFor(t, 3)

	assert.Equal(t, 2, chat.MarkRead(context.Background(), "s1"))
	assert.Equal(t, 0, chat.MarkRead(context.Background(), "s1"))
	assert.Equal(t, []string{events.TypeMessagesRead, events.TypeMessagesRead}, bus.types())
}

func TestConsumerAnswersFirstMessageOnly(t *testing.T) {
	hub := newRecordingHub()
	ps := newPubSub(t)
	reg := NewWidgetRegistryService([]entity.WidgetConfig{{Id: "w1", Name: "Shop", IsActive: true, AgentName: "Sam"}})
	chat := NewChatService(hub, NewPublisherService(VisitorMessageTopic, ps), nil, logger.NewNopLogger())
	consumer := NewConsumerService(ps, VisitorMessageTopic, reg, chat, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	chat.HandleInbound("s1", "w1", chatFrame(t, "first"))
	// echo, agent_joined, acknowledgement
	hub.waitFor(t, 3)
	chat.HandleInbound("s1", "w1", chatFrame(t, "second"))
	hub.waitFor(t, 1)

	frames := hub.sent("s1")
	var types []string
	for _, f := range frames {
		types = append(types, f.Type)
	}
	assert.Equal(t, []string{dto.FrameChatMessage, dto.FrameAgentJoined, dto.FrameChatMessage, dto.FrameChatMessage}, types)

	var joined dto.AgentJoinedData
	require.NoError(t, frames[1].Decode(&joined))
	assert.Equal(t, "Sam", joined.AgentName)

	var ack entity.ChatMessage
	require.NoError(t, frames[2].Decode(&ack))
	assert.Equal(t, entity.AuthorAgent, ack.AuthorType)
	assert.Equal(t, "Sam", ack.AuthorName)
	assert.Equal(t, "Thanks for reaching out! Sam here, I'll be with you shortly.", ack.Content)

	assert.Equal(t, 1, chat.MarkRead(ctx, "s1"))
}
