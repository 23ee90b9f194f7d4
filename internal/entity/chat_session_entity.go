package entity

const (
	SessionStatusActive = "active"
	SessionStatusEnded  = "ended"
)

// Session is the controller's in-memory view of the visitor conversation.
type Session struct {
	Id          string `json:"id"`
	Token       string `json:"token"`
	WidgetId    string `json:"widget_id"`
	Status      string `json:"status"`
	VisitorName string `json:"visitor_name,omitempty"`
}

// StoredSession is the persisted form of a Session.
type StoredSession struct {
	SessionId    string `json:"session_id"`
	Token        string `json:"token"`
	WidgetId     string `json:"widget_id"`
	VisitorName  string `json:"visitor_name,omitempty"`
	VisitorEmail string `json:"visitor_email,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	LastActivity string `json:"last_activity,omitempty"`
}

// ToSession restores an active session from storage.
func (s *StoredSession) ToSession() *Session {
	return &Session{
		Id:          s.SessionId,
		Token:       s.Token,
		WidgetId:    s.WidgetId,
		Status:      SessionStatusActive,
		VisitorName: s.VisitorName,
	}
}

type VisitorInfo struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	LastVisit   string `json:"last_visit,omitempty"`
}

type WidgetState struct {
	IsMinimized     bool   `json:"is_minimized"`
	UnreadCount     int    `json:"unread_count"`
	LastInteraction string `json:"last_interaction,omitempty"`
}
