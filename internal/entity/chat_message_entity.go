package entity

import "time"

const (
	AuthorVisitor = "visitor"
	AuthorAgent   = "agent"
	AuthorAIAgent = "ai-agent"
	AuthorSystem  = "system"

	MessageTypeText = "text"
	MessageTypeFile = "file"
)

type ChatMessage struct {
	Id          string `json:"id"`
	Content     string `json:"content"`
	AuthorType  string `json:"author_type"`
	AuthorName  string `json:"author_name,omitempty"`
	CreatedAt   string `json:"created_at"`
	MessageType string `json:"message_type"`
	IsPrivate   bool   `json:"is_private"`
}

// FromAgent reports whether a human or AI agent wrote the message.
func (m *ChatMessage) FromAgent() bool {
	return m.AuthorType == AuthorAgent || m.AuthorType == AuthorAIAgent
}

// TimestampLayout renders UTC times with millisecond precision and a Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
