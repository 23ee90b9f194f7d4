package events

import "time"

// Event defines the contract for all events raised by the widget runtime and
// the stand-in backend.
type Event interface {
	// EventType returns the unique code for this event (e.g., "message:received").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Widget events observable by the embedding host.
const (
	TypeError           = "error"
	TypeSessionStarted  = "session:started"
	TypeMessageReceived = "message:received"
	TypeMessageSent     = "message:sent"
	TypeAgentJoined     = "agent:joined"
	TypeAgentTyping     = "agent:typing"
)

// Backend events published on the bus.
const (
	TypeChatMessageCreated = "CHAT_MESSAGE_CREATED"
	TypeMessagesRead       = "CHAT_MESSAGES_READ"
)

// BaseEvent is the concrete Event used throughout the module.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

// New builds a BaseEvent stamped with the current time.
func New(eventType string, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
