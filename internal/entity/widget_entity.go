package entity

import (
	"encoding/json"
	"time"

	"tms-widget/pkg/theme"
)

type WidgetConfig struct {
	Id               string        `json:"id"`
	TenantId         string        `json:"tenant_id,omitempty"`
	ProjectId        string        `json:"project_id,omitempty"`
	DomainId         string        `json:"domain_id,omitempty"`
	DomainUrl        string        `json:"domain_url,omitempty"`
	Name             string        `json:"name"`
	IsActive         bool          `json:"is_active"`
	PrimaryColor     string        `json:"primary_color"`
	SecondaryColor   string        `json:"secondary_color"`
	BackgroundColor  string        `json:"background_color,omitempty"`
	Position         string        `json:"position"`
	WelcomeMessage   string        `json:"welcome_message"`
	OfflineMessage   string        `json:"offline_message,omitempty"`
	AwayMessage      string        `json:"away_message,omitempty"`
	CustomGreeting   string        `json:"custom_greeting,omitempty"`
	AutoOpenDelay    int           `json:"auto_open_delay"` // seconds
	ShowAgentAvatars bool          `json:"show_agent_avatars"`
	AllowFileUploads bool          `json:"allow_file_uploads"`
	RequireEmail     bool          `json:"require_email"`
	RequireName      bool          `json:"require_name"`
	BusinessHours    BusinessHours `json:"business_hours"`
	WidgetShape      string        `json:"widget_shape,omitempty"`
	ChatBubbleStyle  string        `json:"chat_bubble_style,omitempty"`
	WidgetSize       string        `json:"widget_size,omitempty"`
	AnimationStyle   string        `json:"animation_style,omitempty"`
	AgentName        string        `json:"agent_name,omitempty"`
	AgentAvatarUrl   string        `json:"agent_avatar_url,omitempty"`
	SoundEnabled     bool          `json:"sound_enabled"`
	ShowPoweredBy    bool          `json:"show_powered_by"`
	UseAi            bool          `json:"use_ai,omitempty"`
	CustomCss        string        `json:"custom_css,omitempty"`
}

// Theme extracts the styling subset of the config.
func (w *WidgetConfig) Theme() theme.Config {
	return theme.Config{
		PrimaryColor:    w.PrimaryColor,
		SecondaryColor:  w.SecondaryColor,
		BackgroundColor: w.BackgroundColor,
		Position:        w.Position,
		WidgetShape:     w.WidgetShape,
		WidgetSize:      w.WidgetSize,
		AnimationStyle:  w.AnimationStyle,
		ChatBubbleStyle: w.ChatBubbleStyle,
		CustomCSS:       w.CustomCss,
	}
}

// Greeting is the custom greeting, or the welcome message when unset.
func (w *WidgetConfig) Greeting() string {
	if w.CustomGreeting != "" {
		return w.CustomGreeting
	}
	return w.WelcomeMessage
}

// AutoOpenAfter converts auto_open_delay to a duration.
func (w *WidgetConfig) AutoOpenAfter() time.Duration {
	return time.Duration(w.AutoOpenDelay) * time.Second
}

type DaySchedule struct {
	Enabled bool   `json:"enabled"`
	Open    string `json:"open"`
	Close   string `json:"close"`
}

// BusinessHours is a weekly schedule keyed by "sun".."sat".
type BusinessHours struct {
	Enabled  bool                   `json:"enabled"`
	Schedule map[string]DaySchedule `json:"schedule,omitempty"`
	// Timezone is an IANA name. Empty evaluates in the clock's own zone.
	Timezone string `json:"timezone,omitempty"`
}

var weekdayKeys = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// IsOpen reports whether now falls inside today's window. A disabled
// schedule is always open, a missing or disabled day is closed, and any
// evaluation failure is treated as open.
func (b BusinessHours) IsOpen(now time.Time) bool {
	if !b.Enabled {
		return true
	}
	if b.Timezone != "" {
		loc, err := time.LoadLocation(b.Timezone)
		if err != nil {
			return true
		}
		now = now.In(loc)
	}

	day, ok := b.Schedule[weekdayKeys[now.Weekday()]]
	if !ok || !day.Enabled {
		return false
	}
	hhmm := now.Format("15:04")
	return hhmm >= day.Open && hhmm <= day.Close
}

// UnmarshalJSON accepts any shape; a schedule that does not decode is
// treated as disabled.
func (b *BusinessHours) UnmarshalJSON(data []byte) error {
	type plain BusinessHours
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*b = BusinessHours{}
		return nil
	}
	*b = BusinessHours(p)
	return nil
}
