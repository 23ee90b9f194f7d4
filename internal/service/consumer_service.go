package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	consumerModule   = "CONSUMER"
	defaultAgentName = "Support"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService plays the agent side of the devserver: the first visitor
// message of every session is answered with agent_joined and an
// acknowledgement from the widget's agent persona.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	widgets   IWidgetRegistryService
	chat      IChatService
	logger    logger.ILogger
	now       func() time.Time

	mu       sync.Mutex
	answered map[string]bool
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	widgets IWidgetRegistryService,
	chat IChatService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		widgets:   widgets,
		chat:      chat,
		logger:    log,
		now:       time.Now,
		answered:  make(map[string]bool),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var payload dto.VisitorMessageEvent
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // never retry garbage
		return
	}

	cs.mu.Lock()
	first := !cs.answered[payload.SessionId]
	cs.answered[payload.SessionId] = true
	cs.mu.Unlock()
	if !first {
		msg.Ack()
		return
	}

	agentName, reply := defaultAgentName, ""
	if widget, err := cs.widgets.GetById(payload.WidgetId); err == nil {
		if widget.AgentName != "" {
			agentName = widget.AgentName
		}
		if !widget.BusinessHours.IsOpen(cs.now()) && widget.AwayMessage != "" {
			reply = widget.AwayMessage
		}
	}
	if reply == "" {
		reply = fmt.Sprintf("Thanks for reaching out! %s here, I'll be with you shortly.", agentName)
	}

	if err := cs.chat.SendFrame(payload.SessionId, dto.FrameAgentJoined, dto.AgentJoinedData{
		AgentName: agentName,
		AgentId:   "agent-" + payload.WidgetId,
	}); err != nil {
		cs.logger.Error(consumerModule, "Failed to announce agent", map[string]interface{}{"session_id": payload.SessionId, "error": err.Error()})
		msg.Nack()
		return
	}

	if err := cs.chat.Deliver(payload.SessionId, entity.ChatMessage{
		Content:    reply,
		AuthorType: entity.AuthorAgent,
		AuthorName: agentName,
	}); err != nil {
		cs.logger.Error(consumerModule, "Failed to send acknowledgement", map[string]interface{}{"session_id": payload.SessionId, "error": err.Error()})
		msg.Nack()
		return
	}

	cs.logger.Info(consumerModule, "Session answered", map[string]interface{}{"session_id": payload.SessionId, "agent": agentName})
	msg.Ack()
}
