package widget

import "tms-widget/internal/entity"

// Sound kinds passed to View.PlaySound.
const (
	SoundMessage      = "message"
	SoundNotification = "notification"
	SoundError        = "error"
)

// Focusable fields passed to View.Focus.
const (
	FieldInput = "input"
	FieldName  = "name"
	FieldEmail = "email"
)

// ViewState is everything a View needs to draw the widget. The controller
// owns it; views only read it.
type ViewState struct {
	Version uint64

	// Mounted is false before a successful Init and after Destroy.
	Mounted bool
	// StyleID names the one style element that holds Stylesheet. Empty while
	// unmounted, when the host should remove it.
	StyleID    string
	Stylesheet string
	ToggleIcon string
	Title      string
	AgentName  string

	Open      bool
	Connected bool
	Online    bool
	Status    string

	Transcript []entity.ChatMessage
	Unread     int
	Badge      string
	Typing     string

	IntakeVisible bool
	RequireName   bool
	RequireEmail  bool

	Input            string
	Reaction         string
	AllowFileUploads bool
	PoweredByVisible bool
}

// View draws controller state. Render receives a complete snapshot each time
// state changes; a view must not call back into the Widget from Render.
type View interface {
	Render(state ViewState)
	PlaySound(kind string)
	Focus(field string)
}

type nopView struct{}

func (nopView) Render(ViewState) {}
func (nopView) PlaySound(string) {}
func (nopView) Focus(string)     {}
