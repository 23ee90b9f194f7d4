package widget

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/transport"
	"tms-widget/pkg/events"
)

// backoffDelay is the wait before reconnect attempt n (1-based).
func backoffDelay(attempt int) time.Duration {
	d := ReconnectBaseDelay << (attempt - 1)
	if d > MaxReconnectDelay || d <= 0 {
		return MaxReconnectDelay
	}
	return d
}

// connect opens a socket for the current session, replacing any previous one.
// Callbacks from replaced sockets are ignored by generation.
func (w *Widget) connect() {
	if w.session == nil {
		return
	}
	w.dropConn()

	gen := w.connGen
	url := w.api.WebSocketURL(w.session.Token, w.session.WidgetId)
	w.conn = w.dialer.Dial(url, transport.Handlers{
		OnOpen:    func() { w.onOpen(gen) },
		OnMessage: func(data []byte) { w.onMessage(gen, data) },
		OnError:   func(err error) { w.onError(gen, err) },
		OnClose:   func(code int, reason string) { w.onClose(gen, code, reason) },
	})
}

// dropConn detaches the socket without triggering a reconnect. The close
// itself runs after the lock is released.
func (w *Widget) dropConn() {
	w.connGen++
	w.isConnected = false
	if w.conn != nil {
		conn := w.conn
		w.conn = nil
		w.later(func() { conn.Close() })
	}
}

// lockCurrent takes the lock and reports whether gen is still the live socket.
func (w *Widget) lockCurrent(gen uint64) bool {
	w.mu.Lock()
	if gen != w.connGen || w.phase != phaseReady {
		w.mu.Unlock()
		return false
	}
	return true
}

func (w *Widget) onOpen(gen uint64) {
	if !w.lockCurrent(gen) {
		return
	}
	w.reconnectAttempts = 0
	w.isConnected = true
	w.status = "Connected"
	w.logger.Info(moduleName, "WebSocket connected", map[string]interface{}{"session_id": w.session.Id})
	w.unlockAndFlush()
}

func (w *Widget) onError(gen uint64, err error) {
	if !w.lockCurrent(gen) {
		return
	}
	w.isConnected = false
	w.status = "Connection error"
	w.logger.Warn(moduleName, "WebSocket error", map[string]interface{}{"error": err.Error()})
	w.unlockAndFlush()
}

func (w *Widget) onClose(gen uint64, code int, reason string) {
	if !w.lockCurrent(gen) {
		return
	}
	w.conn = nil
	w.isConnected = false
	if w.businessOpen {
		w.status = "Connecting..."
	} else {
		w.status = "Away"
	}
	w.stopTyping()
	w.typingLabel = ""

	details := map[string]interface{}{"code": code, "reason": reason}
	if w.reconnectAttempts < MaxReconnectAttempts {
		w.reconnectAttempts++
		delay := backoffDelay(w.reconnectAttempts)
		details["attempt"] = w.reconnectAttempts
		details["delay_ms"] = delay.Milliseconds()
		w.logger.Warn(moduleName, "WebSocket disconnected, reconnecting", details)
		w.reconnectTimer = w.clock.AfterFunc(delay, func() { w.reconnect(gen) })
	} else {
		w.status = "Connection failed"
		w.logger.Error(moduleName, "WebSocket reconnect attempts exhausted", details)
	}
	w.unlockAndFlush()
}

func (w *Widget) reconnect(gen uint64) {
	if !w.lockCurrent(gen) {
		return
	}
	w.reconnectTimer = nil
	if w.session != nil && w.conn == nil {
		w.connect()
	}
	w.unlockAndFlush()
}

func (w *Widget) onMessage(gen uint64, data []byte) {
	if !w.lockCurrent(gen) {
		return
	}
	var env dto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		w.logger.Warn(moduleName, "Failed to parse WebSocket message", map[string]interface{}{"error": err.Error()})
		w.mu.Unlock()
		return
	}
	w.handleFrame(&env)
	w.unlockAndFlush()
}

func (w *Widget) handleFrame(env *dto.Envelope) {
	decode := func(v interface{}) bool {
		if err := env.Decode(v); err != nil {
			w.logger.Warn(moduleName, "Failed to decode WebSocket frame", map[string]interface{}{
				"type":  env.Type,
				"error": err.Error(),
			})
			return false
		}
		return true
	}

	switch env.Type {
	case dto.FrameChatMessage:
		var msg entity.ChatMessage
		if decode(&msg) {
			w.receiveMessage(msg)
		}

	case dto.FrameAgentJoined:
		var data dto.AgentJoinedData
		if !decode(&data) {
			return
		}
		w.status = data.AgentName + " joined"
		w.emit(events.TypeAgentJoined, map[string]interface{}{"agent_name": data.AgentName, "agent_id": data.AgentId})
		w.addMessage(w.systemMessage(w.localID("agent-joined-"), data.AgentName+" has joined the conversation", "System"))

	case dto.FrameTypingStart:
		var data dto.TypingData
		if decode(&data) && data.AuthorType == entity.AuthorAgent {
			w.typingLabel = data.AuthorName + " is typing..."
			w.emit(events.TypeAgentTyping, map[string]interface{}{"author_type": data.AuthorType, "author_name": data.AuthorName})
		}

	case dto.FrameTypingStop:
		w.typingLabel = ""

	case dto.FrameMessageRead:
		var data dto.ReadReceiptData
		if decode(&data) {
			w.markReadByAgent(data.MessageId)
		}

	case dto.FrameSessionUpdate:
		var data dto.SessionUpdateData
		if decode(&data) && data.Status == entity.SessionStatusEnded {
			w.endSession()
		}

	case dto.FrameError:
		var data dto.ErrorData
		if decode(&data) {
			w.emitError(data.Error)
			w.showError(data.Error)
		}

	default:
		w.logger.Warn(moduleName, "Unknown WebSocket message type", map[string]interface{}{"type": env.Type})
	}
}

func (w *Widget) receiveMessage(msg entity.ChatMessage) {
	if w.hasMessage(msg.Id) {
		return
	}
	if msg.AuthorType == entity.AuthorVisitor && w.reconcileEcho(msg) {
		return
	}

	w.addMessage(msg)
	w.emit(events.TypeMessageReceived, messagePayload(msg))

	switch {
	case !w.isOpen && msg.AuthorType == entity.AuthorAgent:
		w.unread++
		w.playSound(SoundNotification)
	case msg.FromAgent():
		w.playSound(SoundMessage)
	}
	if w.isOpen && msg.AuthorType == entity.AuthorAgent {
		w.sendReadReceipt(msg.Id)
	}
}

// reconcileEcho replaces the oldest optimistic message with the same content
// by the server's copy of it.
func (w *Widget) reconcileEcho(msg entity.ChatMessage) bool {
	idx := -1
	for i := range w.messages {
		m := w.messages[i]
		if m.AuthorType == entity.AuthorVisitor && isPending(m.Id) && m.Content == msg.Content {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	pendingId := w.messages[idx].Id
	w.messages[idx] = msg
	for i := range w.transcript {
		if w.transcript[i].Id == pendingId {
			w.transcript[i] = msg
			break
		}
	}
	w.store.SaveMessages(w.messages)
	return true
}

func isPending(id string) bool {
	return strings.HasPrefix(id, pendingPrefix)
}

func (w *Widget) markReadByAgent(messageId string) {
	for i := range w.messages {
		if w.messages[i].Id == messageId && w.messages[i].AuthorType == entity.AuthorVisitor {
			w.readByAgent[messageId] = true
			w.logger.Debug(moduleName, "Message was read by agent", map[string]interface{}{"message_id": messageId})
			return
		}
	}
}

// endSession closes the conversation. The cached token goes too, so the next
// open mints a fresh session instead of resuming this one.
func (w *Widget) endSession() {
	w.status = "Session ended"
	w.addMessage(w.systemMessage(w.localID("session-ended-"),
		"The conversation has ended. Feel free to start a new chat if you need further assistance.", "System"))

	w.stopTyping()
	w.typingLabel = ""
	w.logger.Info(moduleName, "Chat session ended", map[string]interface{}{"session_id": w.session.Id})
	w.session = nil
	w.store.ClearSession()
	w.store.RemoveSessionToken()
	stopTimer(&w.reconnectTimer)
	w.dropConn()
}

// markUnreadAsRead acknowledges the latest agent messages once the visitor
// opens the widget.
func (w *Widget) markUnreadAsRead() {
	if !w.isConnected || w.session == nil {
		return
	}

	var agent []string
	for i := range w.messages {
		if w.messages[i].FromAgent() {
			agent = append(agent, w.messages[i].Id)
		}
	}
	if len(agent) > readReceiptWindow {
		agent = agent[len(agent)-readReceiptWindow:]
	}
	for _, id := range agent {
		w.sendReadReceipt(id)
	}

	sessionId := w.session.Id
	w.later(func() {
		go func() {
			ctx, cancel := context.WithTimeout(w.ctx, 10*time.Second)
			defer cancel()
			if err := w.api.MarkMessagesAsRead(ctx, sessionId); err != nil {
				w.logger.Warn(moduleName, "Failed to mark messages as read", map[string]interface{}{"error": err.Error()})
			}
		}()
	})
}

func (w *Widget) sendReadReceipt(messageId string) {
	w.sendFrame(dto.FrameMessageRead, dto.ReadReceiptData{MessageId: messageId, ReadBy: entity.AuthorVisitor})
}

// sendFrame writes an envelope on the live socket. It is a no-op while
// disconnected.
func (w *Widget) sendFrame(frameType string, data interface{}) error {
	if !w.isConnected || w.conn == nil || w.session == nil {
		return nil
	}
	env, err := dto.NewEnvelope(frameType, w.session.Id, data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := w.conn.Send(raw); err != nil {
		w.logger.Warn(moduleName, "Failed to send WebSocket frame", map[string]interface{}{
			"type":  frameType,
			"error": err.Error(),
		})
		return err
	}
	return nil
}
