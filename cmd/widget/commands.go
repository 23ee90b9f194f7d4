package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tms-widget/internal/widget"
)

var (
	errUsage = errors.New("usage")
	errHelp  = errors.New(helpText)
)

// controller is the part of the widget driven from stdin.
type controller interface {
	Open()
	Close()
	Toggle()
	SetInput(text string)
	SendMessage() error
	SendQuickReaction(emoji string) error
	UploadFile(name string, size int64) error
	SubmitIntake(name, email string) error
	CancelIntake()
}

const helpText = `commands:
  <text>                 send a message
  /open /close /toggle   show or hide the chat
  /up /down              quick reaction
  /file <path>           upload a file
  /intake <name> [email] submit the visitor form
  /cancel                dismiss the visitor form
  /quit                  leave`

// execute runs one stdin line against w. quit is true for /quit.
func execute(w controller, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		w.SetInput(line)
		return false, w.SendMessage()
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/open":
		w.Open()
	case "/close":
		w.Close()
	case "/toggle":
		w.Toggle()
	case "/up":
		return false, w.SendQuickReaction(widget.ThumbsUp)
	case "/down":
		return false, w.SendQuickReaction(widget.ThumbsDown)
	case "/file":
		if len(fields) < 2 {
			return false, fmt.Errorf("%w: /file <path>", errUsage)
		}
		path := strings.TrimSpace(strings.TrimPrefix(line, "/file"))
		info, err := os.Stat(path)
		if err != nil {
			return false, err
		}
		return false, w.UploadFile(filepath.Base(path), info.Size())
	case "/intake":
		if len(fields) < 2 {
			return false, fmt.Errorf("%w: /intake <name> [email]", errUsage)
		}
		args, email := fields[1:], ""
		if last := args[len(args)-1]; strings.Contains(last, "@") {
			email, args = last, args[:len(args)-1]
		}
		return false, w.SubmitIntake(strings.Join(args, " "), email)
	case "/cancel":
		w.CancelIntake()
	case "/help":
		return false, errHelp
	default:
		return false, fmt.Errorf("unknown command %s, try /help", fields[0])
	}
	return false, nil
}
