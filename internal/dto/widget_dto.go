package dto

import (
	"encoding/json"
	"fmt"

	"tms-widget/internal/entity"
)

// WebSocket frame types.
const (
	FrameChatMessage   = "chat_message"
	FrameAgentJoined   = "agent_joined"
	FrameTypingStart   = "typing_start"
	FrameTypingStop    = "typing_stop"
	FrameMessageRead   = "message_read"
	FrameSessionUpdate = "session_update"
	FrameError         = "error"
)

// Envelope is a single WebSocket frame in either direction.
type Envelope struct {
	Type            string          `json:"type"`
	ClientSessionId string          `json:"client_session_id,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a frame of the given type.
func NewEnvelope(frameType, sessionId string, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s frame: %w", frameType, err)
	}
	return &Envelope{Type: frameType, ClientSessionId: sessionId, Data: raw}, nil
}

// Decode unmarshals the frame data into v.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s frame has no data", e.Type)
	}
	return json.Unmarshal(e.Data, v)
}

type OutboundChatMessage struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	AuthorType  string `json:"author_type"`
	AuthorName  string `json:"author_name"`
}

type TypingData struct {
	AuthorType string `json:"author_type"`
	AuthorName string `json:"author_name"`
}

type ReadReceiptData struct {
	MessageId string `json:"message_id"`
	ReadBy    string `json:"read_by"`
}

type AgentJoinedData struct {
	AgentName string `json:"agent_name"`
	AgentId   string `json:"agent_id,omitempty"`
}

type SessionUpdateData struct {
	Status string `json:"status"`
}

type ErrorData struct {
	Error string `json:"error"`
}

// VisitorMetadata travels inside the session token claims.
type VisitorMetadata struct {
	Fingerprint string `json:"fingerprint"`
	UserAgent   string `json:"user_agent,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Language    string `json:"language,omitempty"`
}

type InitiateChatRequest struct {
	VisitorName    string          `json:"visitor_name"`
	VisitorEmail   string          `json:"visitor_email"`
	InitialMessage string          `json:"initial_message,omitempty"`
	VisitorInfo    VisitorMetadata `json:"visitor_info"`
}

type InitiateChatResponse struct {
	SessionToken string `json:"session_token"`
	SessionId    string `json:"session_id"`
}

// SessionToken is the cached token pair, stored under a single global key.
type SessionToken struct {
	ChatSessionToken string `json:"chatSessionToken"`
	SessionId        string `json:"sessionId"`
}

// IntakeForm is what the visitor submits when name or email is required.
type IntakeForm struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email"`
}

type MarkReadResponse struct {
	SessionId string `json:"session_id"`
	Marked    int    `json:"marked"`
}

// StorageSnapshot bulk-restores persisted widget data.
type StorageSnapshot struct {
	Session     *entity.StoredSession `json:"session,omitempty"`
	Messages    []entity.ChatMessage  `json:"messages,omitempty"`
	VisitorInfo *entity.VisitorInfo   `json:"visitorInfo,omitempty"`
	WidgetState *entity.WidgetState   `json:"widgetState,omitempty"`
}

// VisitorMessageEvent is published on the devserver bus for every visitor
// chat message.
type VisitorMessageEvent struct {
	SessionId string             `json:"session_id"`
	WidgetId  string             `json:"widget_id"`
	Message   entity.ChatMessage `json:"message"`
}
