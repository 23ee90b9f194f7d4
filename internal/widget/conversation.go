package widget

import (
	"fmt"

	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/pkg/events"
	"tms-widget/pkg/fingerprint"
)

const pendingPrefix = "temp-"

// IntakeError reports the intake field that blocked submission.
type IntakeError struct {
	Field string
	Err   error
}

func (e *IntakeError) Error() string {
	return fmt.Sprintf("intake %s: %v", e.Field, e.Err)
}

func (e *IntakeError) Unwrap() error { return e.Err }

// needsIntake reports whether the configuration asks for visitor details
// that are not cached yet.
func (w *Widget) needsIntake() bool {
	info := w.store.GetVisitorInfo()
	if w.widget.RequireEmail && (info == nil || info.Email == "") {
		return true
	}
	if w.widget.RequireName && (info == nil || info.Name == "") {
		return true
	}
	return false
}

func (w *Widget) showIntake() {
	w.intake = true
	w.later(func() { w.view.Focus(FieldName) })
}

// SubmitIntake validates the intake form, stores the visitor details and
// starts a session. Invalid input keeps the form open and focuses the
// offending field.
func (w *Widget) SubmitIntake(name, email string) error {
	w.mu.Lock()
	if w.phase != phaseReady {
		w.mu.Unlock()
		return ErrNotReady
	}

	form := dto.IntakeForm{Name: trim(name), Email: trim(email)}
	if field, err := w.validateIntake(form); err != nil {
		w.later(func() { w.view.Focus(field) })
		w.unlockAndFlush()
		return &IntakeError{Field: field, Err: err}
	}

	w.store.SaveVisitorInfo(entity.VisitorInfo{
		Name:        form.Name,
		Email:       form.Email,
		Fingerprint: w.fingerprint(),
		LastVisit:   w.now(),
	})
	w.intake = false
	w.showGreeting()
	w.unlockAndFlush()

	w.initiateSession(form.Name, form.Email)
	return nil
}

// validateIntake always wants a name. The email is only checked, format
// included, when the widget asks for one.
func (w *Widget) validateIntake(form dto.IntakeForm) (string, error) {
	if err := w.validate.Struct(form); err != nil {
		return FieldName, err
	}
	if w.widget.RequireEmail {
		if err := w.validate.Var(form.Email, "required,email"); err != nil {
			return FieldEmail, err
		}
	}
	return "", nil
}

// CancelIntake dismisses the intake form and closes the widget.
func (w *Widget) CancelIntake() {
	w.mu.Lock()
	w.intake = false
	w.unlockAndFlush()
	w.Close()
}

func (w *Widget) fingerprint() string {
	return fingerprint.Generate(w.env, w.clock.Now()).Value
}

// initiateSession obtains session credentials and connects. The API call runs
// without the lock held.
func (w *Widget) initiateSession(name, email string) {
	w.mu.Lock()
	if w.phase != phaseReady || w.session != nil || w.starting {
		w.mu.Unlock()
		return
	}
	w.starting = true
	widgetId := w.widget.Id
	req := dto.InitiateChatRequest{
		VisitorName:    name,
		VisitorEmail:   email,
		InitialMessage: w.widget.WelcomeMessage,
		VisitorInfo: dto.VisitorMetadata{
			Fingerprint: w.fingerprint(),
			UserAgent:   w.env.UserAgent,
			Timezone:    w.env.Timezone,
			Language:    w.env.Language,
		},
	}
	w.mu.Unlock()

	resp, err := w.api.InitiateChat(w.ctx, widgetId, req)

	w.mu.Lock()
	w.starting = false
	if w.phase != phaseReady {
		w.mu.Unlock()
		return
	}
	if err != nil {
		w.logger.Error(moduleName, "Failed to start chat session", map[string]interface{}{"error": err.Error()})
		w.emitError("Failed to start chat session")
		w.showError("Unable to connect. Please try again.")
		w.showIntake()
		w.unlockAndFlush()
		return
	}

	w.session = &entity.Session{
		Id:          resp.SessionId,
		Token:       resp.SessionToken,
		WidgetId:    widgetId,
		Status:      entity.SessionStatusActive,
		VisitorName: name,
	}
	now := w.now()
	w.store.SaveSession(entity.StoredSession{
		SessionId:    resp.SessionId,
		Token:        resp.SessionToken,
		WidgetId:     widgetId,
		VisitorName:  name,
		VisitorEmail: email,
		CreatedAt:    now,
		LastActivity: now,
	})
	w.reconnectAttempts = 0
	w.connect()
	w.emit(events.TypeSessionStarted, map[string]interface{}{
		"id":           w.session.Id,
		"widget_id":    w.session.WidgetId,
		"status":       w.session.Status,
		"visitor_name": w.session.VisitorName,
	})
	w.logger.Info(moduleName, "Chat session started", map[string]interface{}{"session_id": resp.SessionId})
	w.unlockAndFlush()
}

// SetInput replaces the input buffer, as on every keystroke.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	if w.phase != phaseReady {
		w.mu.Unlock()
		return
	}
	w.input = text
	if trim(text) == "" {
		w.stopTyping()
	} else {
		w.handleTyping()
	}
	w.unlockAndFlush()
}

// Blur ends the outbound typing indicator.
func (w *Widget) Blur() {
	w.mu.Lock()
	w.stopTyping()
	w.unlockAndFlush()
}

// SendMessage sends the input buffer. The message is shown at once; over a
// closed socket it stays local and is not retried.
func (w *Widget) SendMessage() error {
	w.mu.Lock()
	err := w.sendMessage()
	w.unlockAndFlush()
	return err
}

func (w *Widget) sendMessage() error {
	if w.phase != phaseReady {
		return ErrNotReady
	}
	if w.session == nil {
		return ErrNoSession
	}
	text := trim(w.input)
	if text == "" {
		return nil
	}
	w.input = ""
	w.stopTyping()

	msg := entity.ChatMessage{
		Id:          w.localID(pendingPrefix),
		Content:     text,
		AuthorType:  entity.AuthorVisitor,
		AuthorName:  "You",
		CreatedAt:   w.now(),
		MessageType: entity.MessageTypeText,
	}
	w.addMessage(msg)

	if !w.isConnected || w.conn == nil {
		w.logger.Warn(moduleName, "WebSocket not connected, message not sent", map[string]interface{}{"message_id": msg.Id})
		return nil
	}

	err := w.sendFrame(dto.FrameChatMessage, dto.OutboundChatMessage{
		Content:     text,
		MessageType: entity.MessageTypeText,
		AuthorType:  entity.AuthorVisitor,
		AuthorName:  "You",
	})
	if err != nil {
		w.logger.Error(moduleName, "Failed to send message", map[string]interface{}{"error": err.Error()})
		w.emitError("Failed to send message")
		w.showError("Failed to send message. Please try again.")
		w.rollbackPending()
		return fmt.Errorf("failed to send message: %w", err)
	}
	w.emit(events.TypeMessageSent, messagePayload(msg))
	return nil
}

// rollbackPending removes the most recent optimistic message.
func (w *Widget) rollbackPending() {
	for i := len(w.messages) - 1; i >= 0; i-- {
		if !isPending(w.messages[i].Id) {
			continue
		}
		id := w.messages[i].Id
		w.messages = append(w.messages[:i], w.messages[i+1:]...)
		for j := range w.transcript {
			if w.transcript[j].Id == id {
				w.transcript = append(w.transcript[:j], w.transcript[j+1:]...)
				break
			}
		}
		w.store.SaveMessages(w.messages)
		return
	}
}

// SendQuickReaction puts emoji in the input and sends it, animating the
// reaction button briefly.
func (w *Widget) SendQuickReaction(emoji string) error {
	w.mu.Lock()
	if w.phase != phaseReady {
		w.mu.Unlock()
		return ErrNotReady
	}

	w.reactionGen++
	gen := w.reactionGen
	w.reaction = emoji
	stopTimer(&w.reactionTimer)
	w.reactionTimer = w.clock.AfterFunc(ReactionAnimation, func() {
		w.mu.Lock()
		if gen == w.reactionGen {
			w.reaction = ""
			w.reactionTimer = nil
		}
		w.unlockAndFlush()
	})

	w.input = emoji
	err := w.sendMessage()
	w.unlockAndFlush()
	return err
}

// UploadFile accepts a file for the conversation. Bytes are not transmitted;
// the transcript records the upload locally.
func (w *Widget) UploadFile(name string, size int64) error {
	w.mu.Lock()
	defer w.unlockAndFlush()

	if w.phase != phaseReady {
		return ErrNotReady
	}
	if w.session == nil {
		return ErrNoSession
	}
	if !w.widget.AllowFileUploads {
		return ErrUploadNotAllowed
	}
	if size > MaxUploadSize {
		w.emitError("File size must be less than 10MB")
		w.showError("File size must be less than 10MB")
		return ErrFileTooLarge
	}

	w.addMessage(entity.ChatMessage{
		Id:          w.localID("file-"),
		Content:     "📎 Uploaded: " + name,
		AuthorType:  entity.AuthorVisitor,
		AuthorName:  "You",
		CreatedAt:   w.now(),
		MessageType: entity.MessageTypeFile,
	})
	return nil
}

// handleTyping sends typing_start once and restarts the idle timer.
func (w *Widget) handleTyping() {
	if !w.isConnected || w.conn == nil || w.session == nil {
		return
	}
	stopTimer(&w.typingTimer)
	if !w.isTyping {
		w.isTyping = true
		w.sendTyping(true)
	}

	w.typingGen++
	gen := w.typingGen
	w.typingTimer = w.clock.AfterFunc(TypingIdleTimeout, func() {
		w.mu.Lock()
		if gen == w.typingGen {
			w.typingTimer = nil
			w.stopTyping()
		}
		w.unlockAndFlush()
	})
}

func (w *Widget) stopTyping() {
	if w.isTyping {
		w.isTyping = false
		w.sendTyping(false)
	}
	w.typingGen++
	stopTimer(&w.typingTimer)
}

func (w *Widget) sendTyping(start bool) {
	frame := dto.FrameTypingStop
	if start {
		frame = dto.FrameTypingStart
	}
	w.sendFrame(frame, dto.TypingData{AuthorType: entity.AuthorVisitor, AuthorName: "You"})
}
