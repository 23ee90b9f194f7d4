package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/pkg/logger"
	"tms-widget/pkg/events"

	"github.com/google/uuid"
)

const chatModule = "CHAT"

// FrameSender delivers raw frames to every peer of a session.
type FrameSender interface {
	Send(sessionId string, data []byte)
}

// EventPublisher forwards domain events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IChatService interface {
	// HandleInbound processes one frame received from a widget.
	HandleInbound(sessionId, widgetId string, data []byte)
	// Deliver stamps msg if needed and sends it to the session as a chat_message frame.
	Deliver(sessionId string, msg entity.ChatMessage) error
	SendFrame(sessionId, frameType string, data interface{}) error
	// MarkRead clears the agent messages the visitor has not read yet and
	// returns how many there were.
	MarkRead(ctx context.Context, sessionId string) int
}

type chatService struct {
	hub       FrameSender
	publisher IPublisherService
	events    EventPublisher
	logger    logger.ILogger
	now       func() time.Time

	mu     sync.Mutex
	unread map[string]int
}

// NewChatService wires the chat flow. eventPublisher may be nil when no
// external bus is configured.
func NewChatService(hub FrameSender, publisher IPublisherService, eventPublisher EventPublisher, log logger.ILogger) IChatService {
	return &chatService{
		hub:       hub,
		publisher: publisher,
		events:    eventPublisher,
		logger:    log,
		now:       time.Now,
		unread:    make(map[string]int),
	}
}

func (s *chatService) HandleInbound(sessionId, widgetId string, data []byte) {
	var env dto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn(chatModule, "Discarding malformed frame", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		return
	}

	switch env.Type {
	case dto.FrameChatMessage:
		s.handleChatMessage(sessionId, widgetId, &env)

	case dto.FrameTypingStart, dto.FrameTypingStop:
		s.logger.Debug(chatModule, "Visitor typing", map[string]interface{}{"session_id": sessionId, "type": env.Type})

	case dto.FrameMessageRead:
		var receipt dto.ReadReceiptData
		if err := env.Decode(&receipt); err != nil {
			s.logger.Warn(chatModule, "Invalid read receipt", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
			return
		}
		s.logger.Debug(chatModule, "Read receipt", map[string]interface{}{"session_id": sessionId, "message_id": receipt.MessageId})

	default:
		s.logger.Warn(chatModule, "Unsupported frame type", map[string]interface{}{"session_id": sessionId, "type": env.Type})
		s.sendError(sessionId, "Unsupported message type: "+env.Type)
	}
}

func (s *chatService) handleChatMessage(sessionId, widgetId string, env *dto.Envelope) {
	var in dto.OutboundChatMessage
	if err := env.Decode(&in); err != nil {
		s.sendError(sessionId, "Invalid chat message")
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		s.sendError(sessionId, "Message content is required")
		return
	}

	msgType := in.MessageType
	if msgType == "" {
		msgType = entity.MessageTypeText
	}
	msg := s.stamp(entity.ChatMessage{
		Content:     in.Content,
		AuthorType:  entity.AuthorVisitor,
		AuthorName:  in.AuthorName,
		MessageType: msgType,
	})
	if err := s.Deliver(sessionId, msg); err != nil {
		s.logger.Error(chatModule, "Failed to echo visitor message", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		return
	}

	ctx := context.Background()
	evt := dto.VisitorMessageEvent{SessionId: sessionId, WidgetId: widgetId, Message: msg}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error(chatModule, "Failed to publish visitor message", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
	}

	if s.events != nil {
		payload := map[string]interface{}{
			"session_id": sessionId,
			"widget_id":  widgetId,
			"message_id": msg.Id,
			"content":    msg.Content,
		}
		if err := s.events.Publish(ctx, events.New(events.TypeChatMessageCreated, payload)); err != nil {
			s.logger.Warn(chatModule, "Failed to publish chat event", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		}
	}
}

func (s *chatService) stamp(msg entity.ChatMessage) entity.ChatMessage {
	if msg.Id == "" {
		msg.Id = uuid.NewString()
	}
	if msg.CreatedAt == "" {
		msg.CreatedAt = entity.FormatTimestamp(s.now())
	}
	if msg.MessageType == "" {
		msg.MessageType = entity.MessageTypeText
	}
	return msg
}

func (s *chatService) Deliver(sessionId string, msg entity.ChatMessage) error {
	msg = s.stamp(msg)
	if err := s.SendFrame(sessionId, dto.FrameChatMessage, msg); err != nil {
		return err
	}
	if msg.FromAgent() {
		s.mu.Lock()
		s.unread[sessionId]++
		s.mu.Unlock()
	}
	return nil
}

func (s *chatService) SendFrame(sessionId, frameType string, data interface{}) error {
	env, err := dto.NewEnvelope(frameType, sessionId, data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.hub.Send(sessionId, raw)
	return nil
}

func (s *chatService) sendError(sessionId, text string) {
	if err := s.SendFrame(sessionId, dto.FrameError, dto.ErrorData{Error: text}); err != nil {
		s.logger.Error(chatModule, "Failed to send error frame", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
	}
}

func (s *chatService) MarkRead(ctx context.Context, sessionId string) int {
	s.mu.Lock()
	marked := s.unread[sessionId]
	delete(s.unread, sessionId)
	s.mu.Unlock()

	if s.events != nil {
		payload := map[string]interface{}{"session_id": sessionId, "marked": marked}
		if err := s.events.Publish(ctx, events.New(events.TypeMessagesRead, payload)); err != nil {
			s.logger.Warn(chatModule, "Failed to publish read event", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		}
	}
	return marked
}
