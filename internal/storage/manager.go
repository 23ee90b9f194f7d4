// Package storage is the widget's best-effort local persistence. Every key is
// namespaced by widget id. Storage failures are logged and swallowed: callers
// see empty results, never errors.
package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/pkg/logger"
	"tms-widget/internal/repository/contract"
)

// Key roles within a widget namespace.
const (
	RoleSession     = "tms_chat_session"
	RoleMessages    = "tms_chat_messages"
	RoleVisitorInfo = "tms_visitor_info"
	RoleWidgetState = "tms_widget_state"
)

const (
	// MaxMessages bounds the persisted history; older entries are dropped first.
	MaxMessages = 50

	// SessionTokenKey holds the cached token pair. It is global, not namespaced.
	SessionTokenKey = "chat_session_token"

	checkKey   = "__tms_storage_test__"
	opTimeout  = 2 * time.Second
	moduleName = "STORAGE"
)

type Manager struct {
	store  contract.KeyValueStore
	prefix string
	logger logger.ILogger
	now    func() time.Time
}

type Option func(*Manager)

func WithLogger(l logger.ILogger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store contract.KeyValueStore, widgetId string, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		prefix: "tms_" + widgetId + "_",
		logger: logger.NewNopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Prefix is the namespace shared by all keys of this widget.
func (m *Manager) Prefix() string { return m.prefix }

// Key returns the namespaced key for a role.
func (m *Manager) Key(role string) string { return m.prefix + role }

func (m *Manager) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// IsAvailable writes and removes a throwaway key.
func (m *Manager) IsAvailable() bool {
	ctx, cancel := m.ctx()
	defer cancel()

	if err := m.store.SetItem(ctx, checkKey, "test"); err != nil {
		return false
	}
	if err := m.store.RemoveItem(ctx, checkKey); err != nil {
		return false
	}
	return true
}

func (m *Manager) write(key string, v interface{}, what string) {
	if !m.IsAvailable() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		m.logger.Warn(moduleName, "Failed to save "+what, map[string]interface{}{"key": key, "error": err.Error()})
		return
	}

	ctx, cancel := m.ctx()
	defer cancel()
	if err := m.store.SetItem(ctx, key, string(raw)); err != nil {
		m.logger.Warn(moduleName, "Failed to save "+what, map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (m *Manager) read(key string, v interface{}, what string) bool {
	ok, _ := m.readValue(key, v, what)
	return ok
}

// readValue decodes key into v. corrupt is true when a value exists but
// does not parse.
func (m *Manager) readValue(key string, v interface{}, what string) (ok, corrupt bool) {
	if !m.IsAvailable() {
		return false, false
	}
	ctx, cancel := m.ctx()
	defer cancel()

	raw, found, err := m.store.GetItem(ctx, key)
	if err != nil {
		m.logger.Warn(moduleName, "Failed to get "+what, map[string]interface{}{"key": key, "error": err.Error()})
		return false, false
	}
	if !found || raw == "" {
		return false, false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		m.logger.Warn(moduleName, "Failed to get "+what, map[string]interface{}{"key": key, "error": err.Error()})
		return false, true
	}
	return true, false
}

func (m *Manager) remove(what string, keys ...string) {
	if !m.IsAvailable() {
		return
	}
	ctx, cancel := m.ctx()
	defer cancel()
	for _, key := range keys {
		if err := m.store.RemoveItem(ctx, key); err != nil {
			m.logger.Warn(moduleName, "Failed to clear "+what, map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
}

// SaveSession stamps last_activity and overwrites the stored session.
func (m *Manager) SaveSession(s entity.StoredSession) {
	s.LastActivity = entity.FormatTimestamp(m.now())
	m.write(m.Key(RoleSession), s, "session")
}

// GetSession returns the stored session, or nil.
func (m *Manager) GetSession() *entity.StoredSession {
	var s entity.StoredSession
	if !m.read(m.Key(RoleSession), &s, "session") {
		return nil
	}
	return &s
}

// ClearSession removes the session together with its message history.
func (m *Manager) ClearSession() {
	m.remove("session", m.Key(RoleSession), m.Key(RoleMessages))
}

// UpdateSessionActivity re-saves an existing session with a fresh timestamp.
func (m *Manager) UpdateSessionActivity() {
	if s := m.GetSession(); s != nil {
		m.SaveSession(*s)
	}
}

// SaveMessages persists the most recent MaxMessages entries.
func (m *Manager) SaveMessages(msgs []entity.ChatMessage) {
	if len(msgs) > MaxMessages {
		msgs = msgs[len(msgs)-MaxMessages:]
	}
	if msgs == nil {
		msgs = []entity.ChatMessage{}
	}
	m.write(m.Key(RoleMessages), msgs, "messages")
}

func (m *Manager) GetMessages() []entity.ChatMessage {
	var msgs []entity.ChatMessage
	if !m.read(m.Key(RoleMessages), &msgs, "messages") {
		return []entity.ChatMessage{}
	}
	return msgs
}

// AddMessage appends msg to the stored history, truncating as needed.
func (m *Manager) AddMessage(msg entity.ChatMessage) {
	msgs := m.GetMessages()
	m.SaveMessages(append(msgs, msg))
}

func (m *Manager) SaveVisitorInfo(v entity.VisitorInfo) {
	m.write(m.Key(RoleVisitorInfo), v, "visitor info")
}

func (m *Manager) GetVisitorInfo() *entity.VisitorInfo {
	var v entity.VisitorInfo
	if !m.read(m.Key(RoleVisitorInfo), &v, "visitor info") {
		return nil
	}
	return &v
}

func (m *Manager) SaveWidgetState(s entity.WidgetState) {
	m.write(m.Key(RoleWidgetState), s, "widget state")
}

func (m *Manager) GetWidgetState() *entity.WidgetState {
	var s entity.WidgetState
	if !m.read(m.Key(RoleWidgetState), &s, "widget state") {
		return nil
	}
	return &s
}

// Cleanup removes every role key in this widget's namespace. Keys of other
// widgets whose id merely extends this one are left alone.
func (m *Manager) Cleanup() {
	if !m.IsAvailable() {
		return
	}
	ctx, cancel := m.ctx()
	defer cancel()

	keys, err := m.store.Keys(ctx, m.prefix)
	if err != nil {
		m.logger.Warn(moduleName, "Failed to cleanup storage", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, key := range keys {
		if !isRole(strings.TrimPrefix(key, m.prefix)) {
			continue
		}
		if err := m.store.RemoveItem(ctx, key); err != nil {
			m.logger.Warn(moduleName, "Failed to cleanup storage", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
}

func isRole(name string) bool {
	switch name {
	case RoleSession, RoleMessages, RoleVisitorInfo, RoleWidgetState:
		return true
	}
	return false
}

// Import restores whichever parts of snap are present.
func (m *Manager) Import(snap dto.StorageSnapshot) {
	if snap.Session != nil {
		m.SaveSession(*snap.Session)
	}
	if snap.Messages != nil {
		m.SaveMessages(snap.Messages)
	}
	if snap.VisitorInfo != nil {
		m.SaveVisitorInfo(*snap.VisitorInfo)
	}
	if snap.WidgetState != nil {
		m.SaveWidgetState(*snap.WidgetState)
	}
}

// GetSessionToken returns the cached token pair, or nil. An unparseable
// entry is removed.
func (m *Manager) GetSessionToken() *dto.SessionToken {
	var t dto.SessionToken
	ok, corrupt := m.readValue(SessionTokenKey, &t, "session token")
	if corrupt {
		m.RemoveSessionToken()
	}
	if !ok {
		return nil
	}
	return &t
}

func (m *Manager) SaveSessionToken(t dto.SessionToken) {
	m.write(SessionTokenKey, t, "session token")
}

func (m *Manager) RemoveSessionToken() {
	m.remove("session token", SessionTokenKey)
}
