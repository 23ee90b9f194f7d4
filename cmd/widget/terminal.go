package main

import (
	"fmt"
	"io"
	"sync"

	"tms-widget/internal/entity"
	"tms-widget/internal/widget"

	"github.com/fatih/color"
)

var (
	visitorColor = color.New(color.FgCyan)
	agentColor   = color.New(color.FgGreen)
	systemColor  = color.New(color.FgYellow)
	statusColor  = color.New(color.FgHiBlack)
	errorColor   = color.New(color.FgRed)
)

// terminalView prints the transcript incrementally and announces status,
// typing and intake changes.
type terminalView struct {
	out io.Writer

	mu      sync.Mutex
	printed int
	status  string
	typing  string
	intake  bool
	open    bool
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) Render(s widget.ViewState) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !s.Mounted {
		return
	}
	if s.Open != v.open {
		v.open = s.Open
		if s.Open {
			statusColor.Fprintf(v.out, "── %s ──\n", s.Title)
		} else {
			statusColor.Fprintf(v.out, "── minimized %s ──\n", s.ToggleIcon)
		}
	}
	if s.Status != v.status {
		v.status = s.Status
		statusColor.Fprintf(v.out, "[%s]\n", s.Status)
	}

	// Rolled back messages shrink the transcript.
	if len(s.Transcript) < v.printed {
		v.printed = len(s.Transcript)
	}
	for _, m := range s.Transcript[v.printed:] {
		v.printMessage(m)
	}
	v.printed = len(s.Transcript)

	if s.Typing != v.typing {
		v.typing = s.Typing
		if s.Typing != "" {
			statusColor.Fprintf(v.out, "%s\n", s.Typing)
		}
	}
	if s.IntakeVisible && !v.intake {
		systemColor.Fprintln(v.out, intakePrompt(s.RequireName, s.RequireEmail))
	}
	v.intake = s.IntakeVisible

	if !s.Open && s.Badge != "" {
		statusColor.Fprintf(v.out, "(%s unread)\n", s.Badge)
	}
}

func (v *terminalView) printMessage(m entity.ChatMessage) {
	switch {
	case m.AuthorType == entity.AuthorVisitor:
		visitorColor.Fprintf(v.out, "you: %s\n", m.Content)
	case m.FromAgent():
		agentColor.Fprintf(v.out, "%s: %s\n", authorLabel(m), m.Content)
	default:
		systemColor.Fprintf(v.out, "* %s\n", m.Content)
	}
}

func authorLabel(m entity.ChatMessage) string {
	if m.AuthorName != "" {
		return m.AuthorName
	}
	return "agent"
}

func intakePrompt(requireName, requireEmail bool) string {
	switch {
	case requireName && requireEmail:
		return "Please introduce yourself: /intake <name> <email>"
	case requireEmail:
		return "Please leave your email: /intake <name> <email>"
	default:
		return "Please introduce yourself: /intake <name> [email]"
	}
}

// PlaySound rings the terminal bell.
func (v *terminalView) PlaySound(kind string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprint(v.out, "\a")
}

func (v *terminalView) Focus(field string) {}

func (v *terminalView) printError(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	errorColor.Fprintf(v.out, "error: %s\n", text)
}
