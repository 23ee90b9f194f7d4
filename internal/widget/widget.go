// Package widget is the headless chat widget controller. It owns the session,
// the transcript and the WebSocket, and publishes its state to a View.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"tms-widget/internal/api"
	"tms-widget/internal/config"
	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/pkg/logger"
	"tms-widget/internal/repository/memory"
	"tms-widget/internal/storage"
	"tms-widget/internal/transport"
	"tms-widget/pkg/events"
	"tms-widget/pkg/fingerprint"
	"tms-widget/pkg/theme"

	"github.com/go-playground/validator/v10"
)

const moduleName = "WIDGET"

// DefaultUserAgent identifies the Go runtime in visitor metadata.
const DefaultUserAgent = "tms-widget-go/1.0"

const (
	MaxReconnectAttempts = 5
	ReconnectBaseDelay   = 3 * time.Second
	MaxReconnectDelay    = 30 * time.Second
	TypingIdleTimeout    = 2 * time.Second
	ReactionAnimation    = 600 * time.Millisecond
	MaxUploadSize        = 10 * 1024 * 1024
	readReceiptWindow    = 5
)

// Quick reactions.
const (
	ThumbsUp   = "👍"
	ThumbsDown = "👎"
)

var (
	ErrAlreadyInitialized = errors.New("widget already initialized")
	ErrDestroyed          = errors.New("widget destroyed")
	ErrNotReady           = errors.New("widget not ready")
	ErrNoSession          = errors.New("no active chat session")
	ErrUploadNotAllowed   = errors.New("file uploads are not enabled")
	ErrFileTooLarge       = errors.New("file size must be less than 10MB")
	ErrWidgetNotFound     = errors.New("widget not found for domain")
)

// API is the backend surface the controller needs. *api.Client implements it.
type API interface {
	GetWidgetByDomain(ctx context.Context, domain string) (*entity.WidgetConfig, error)
	InitiateChat(ctx context.Context, widgetId string, req dto.InitiateChatRequest) (*dto.InitiateChatResponse, error)
	MarkMessagesAsRead(ctx context.Context, sessionId string) error
	WebSocketURL(sessionToken, widgetId string) string
}

// Dialer opens chat sockets. Dial must return before invoking any handler.
// *transport.Dialer implements it.
type Dialer interface {
	Dial(url string, h transport.Handlers) transport.Conn
}

type phase int

const (
	phaseUninitialized phase = iota
	phaseInitializing
	phaseReady
	phaseFailed
	phaseDestroyed
)

type Widget struct {
	cfg      config.WidgetConfig
	api      API
	store    *storage.Manager
	dialer   Dialer
	clock    Clock
	view     View
	logger   logger.ILogger
	env      fingerprint.Environment
	emitter  *events.Emitter
	validate *validator.Validate

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	phase        phase
	widget       *entity.WidgetConfig
	stylesheet   string
	session      *entity.Session
	messages     []entity.ChatMessage
	transcript   []entity.ChatMessage
	readByAgent  map[string]bool
	isOpen       bool
	isConnected  bool
	businessOpen bool
	status       string
	unread       int
	typingLabel  string
	intake       bool
	poweredBy    bool
	input        string
	reaction     string
	greeted      bool
	starting     bool

	conn              transport.Conn
	connGen           uint64
	reconnectAttempts int
	reconnectTimer    Timer
	autoOpenTimer     Timer

	isTyping    bool
	typingGen   uint64
	typingTimer Timer

	reactionGen   uint64
	reactionTimer Timer

	version uint64
	outbox  []func()

	viewMu   sync.Mutex
	rendered uint64
}

type Option func(*Widget)

func WithAPI(a API) Option {
	return func(w *Widget) { w.api = a }
}

func WithStorage(m *storage.Manager) Option {
	return func(w *Widget) { w.store = m }
}

func WithDialer(d Dialer) Option {
	return func(w *Widget) { w.dialer = d }
}

func WithClock(c Clock) Option {
	return func(w *Widget) { w.clock = c }
}

func WithView(v View) Option {
	return func(w *Widget) { w.view = v }
}

func WithLogger(l logger.ILogger) Option {
	return func(w *Widget) { w.logger = l }
}

// WithEnvironment sets the device signals used for fingerprinting and
// visitor metadata.
func WithEnvironment(env fingerprint.Environment) Option {
	return func(w *Widget) { w.env = env }
}

// New builds an uninitialized widget. Collaborators that are not supplied
// default to an in-memory store, the HTTP API client and the gorilla dialer.
func New(cfg config.WidgetConfig, opts ...Option) (*Widget, error) {
	if cfg.WidgetID == "" {
		return nil, config.ErrMissingWidgetID
	}
	if cfg.Domain == "" {
		return nil, config.ErrMissingDomain
	}

	w := &Widget{
		cfg:         cfg,
		clock:       systemClock{},
		view:        nopView{},
		logger:      logger.NewNopLogger(),
		env:         fingerprint.Host(DefaultUserAgent),
		emitter:     events.NewEmitter(),
		validate:    validator.New(),
		readByAgent: map[string]bool{},
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.store == nil {
		w.store = storage.NewManager(memory.NewKeyValueStore(), cfg.WidgetID,
			storage.WithLogger(w.logger), storage.WithClock(w.clock.Now))
	}
	if w.api == nil {
		w.api = api.NewClient(cfg.APIURL, w.store, api.WithLogger(w.logger), api.WithClock(w.clock.Now))
	}
	if w.dialer == nil {
		w.dialer = transport.NewDialer(nil, w.logger)
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	return w, nil
}

// Start is New followed by Init.
func Start(ctx context.Context, cfg config.WidgetConfig, opts ...Option) (*Widget, error) {
	w, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Init(ctx); err != nil {
		return w, err
	}
	return w, nil
}

// Init restores any persisted session, fetches the widget configuration for
// the domain and mounts the widget. A failure leaves nothing mounted and
// emits an error event.
func (w *Widget) Init(ctx context.Context) error {
	w.mu.Lock()
	if w.phase != phaseUninitialized {
		w.mu.Unlock()
		return ErrAlreadyInitialized
	}
	w.phase = phaseInitializing
	w.restoreSession()
	w.mu.Unlock()

	cfg, err := w.api.GetWidgetByDomain(ctx, w.cfg.Domain)
	if err == nil && cfg == nil {
		err = ErrWidgetNotFound
	}

	w.mu.Lock()
	if w.phase == phaseDestroyed {
		w.mu.Unlock()
		return ErrDestroyed
	}
	if err != nil {
		w.phase = phaseFailed
		w.logger.Error(moduleName, "Failed to initialize chat widget", map[string]interface{}{
			"domain": w.cfg.Domain,
			"error":  err.Error(),
		})
		w.emitError("Failed to initialize chat widget")
		w.unlockAndFlush()
		return fmt.Errorf("failed to initialize chat widget: %w", err)
	}

	w.widget = cfg
	w.businessOpen = cfg.BusinessHours.IsOpen(w.clock.Now())
	w.stylesheet = theme.Stylesheet(cfg.Theme())
	if w.businessOpen {
		w.status = "Online now"
	} else {
		w.status = "Away"
	}
	w.phase = phaseReady

	if len(w.messages) > 0 {
		w.transcript = append([]entity.ChatMessage(nil), w.messages...)
	} else if w.session == nil {
		w.showGreeting()
	}

	if delay := cfg.AutoOpenAfter(); delay > 0 && w.session == nil {
		w.autoOpenTimer = w.clock.AfterFunc(delay, w.Open)
	}

	w.logger.Info(moduleName, "Chat widget initialized", map[string]interface{}{
		"widget_id":      cfg.Id,
		"business_hours": w.businessOpen,
		"has_session":    w.session != nil,
	})
	w.unlockAndFlush()
	return nil
}

func (w *Widget) restoreSession() {
	stored := w.store.GetSession()
	if stored == nil {
		return
	}
	w.session = stored.ToSession()
	w.messages = w.store.GetMessages()
	w.store.UpdateSessionActivity()
}

// Open shows the widget. With a session it reconnects when needed; without
// one it either shows the intake form or starts a session straight away.
func (w *Widget) Open() {
	w.mu.Lock()
	if w.phase != phaseReady {
		w.mu.Unlock()
		return
	}
	stopTimer(&w.autoOpenTimer)

	w.isOpen = true
	w.poweredBy = w.widget.ShowPoweredBy

	var start *entity.VisitorInfo
	if w.session != nil {
		w.store.UpdateSessionActivity()
		if !w.isConnected && w.conn == nil {
			stopTimer(&w.reconnectTimer)
			w.connect()
		}
	} else if w.needsIntake() {
		w.showIntake()
	} else {
		start = &entity.VisitorInfo{}
		if cached := w.store.GetVisitorInfo(); cached != nil {
			start = cached
		}
	}

	if w.unread > 0 {
		w.unread = 0
		w.markUnreadAsRead()
	}
	if !w.intake {
		w.later(func() { w.view.Focus(FieldInput) })
	}
	w.unlockAndFlush()

	if start != nil {
		w.initiateSession(start.Name, start.Email)
	}
}

// Close hides the widget and records the interaction.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.phase != phaseReady {
		w.mu.Unlock()
		return
	}
	w.isOpen = false
	w.poweredBy = false
	w.unread = 0
	w.store.SaveWidgetState(entity.WidgetState{
		IsMinimized:     false,
		UnreadCount:     0,
		LastInteraction: entity.FormatTimestamp(w.clock.Now()),
	})
	w.unlockAndFlush()
}

func (w *Widget) Toggle() {
	w.mu.Lock()
	open := w.isOpen
	w.mu.Unlock()
	if open {
		w.Close()
	} else {
		w.Open()
	}
}

// UpdateWidgetConfig applies fn to the live configuration and restyles the
// widget. Business-hours status is not re-evaluated.
func (w *Widget) UpdateWidgetConfig(fn func(cfg *entity.WidgetConfig)) {
	w.mu.Lock()
	if w.widget == nil || w.phase == phaseDestroyed {
		w.mu.Unlock()
		return
	}
	updated := *w.widget
	fn(&updated)
	w.widget = &updated
	w.stylesheet = theme.Stylesheet(updated.Theme())
	if w.isOpen {
		w.poweredBy = updated.ShowPoweredBy
	}
	w.unlockAndFlush()
}

// On registers a handler for a widget event type.
func (w *Widget) On(eventType string, h events.Handler) events.HandlerID {
	return w.emitter.On(eventType, h)
}

func (w *Widget) Off(eventType string, id events.HandlerID) {
	w.emitter.Off(eventType, id)
}

// Destroy cancels timers, closes the socket and unmounts the widget. Without
// session persistence every namespaced storage key is purged as well.
func (w *Widget) Destroy() {
	w.mu.Lock()
	if w.phase == phaseDestroyed {
		w.mu.Unlock()
		return
	}
	w.stopTyping()
	stopTimer(&w.reconnectTimer)
	stopTimer(&w.autoOpenTimer)
	stopTimer(&w.reactionTimer)
	w.dropConn()
	w.cancel()

	w.phase = phaseDestroyed
	w.isOpen = false
	w.poweredBy = false
	if !w.cfg.EnableSessionPersistence {
		w.store.Cleanup()
	}
	w.logger.Info(moduleName, "Chat widget destroyed", nil)
	w.unlockAndFlush()
}

// State returns the current view snapshot.
func (w *Widget) State() ViewState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

// Messages returns the session history.
func (w *Widget) Messages() []entity.ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]entity.ChatMessage(nil), w.messages...)
}

// Session returns a copy of the active session, or nil.
func (w *Widget) Session() *entity.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return nil
	}
	s := *w.session
	return &s
}

// Config returns a copy of the live widget configuration, or nil before Init.
func (w *Widget) Config() *entity.WidgetConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.widget == nil {
		return nil
	}
	c := *w.widget
	return &c
}

func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isOpen
}

func (w *Widget) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isConnected
}

// ReadByAgent reports whether the agent acknowledged a visitor message.
func (w *Widget) ReadByAgent(messageId string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readByAgent[messageId]
}

// later queues fn to run after the lock is released.
func (w *Widget) later(fn func()) {
	w.outbox = append(w.outbox, fn)
}

func (w *Widget) emit(eventType string, data map[string]interface{}) {
	w.later(func() { w.emitter.Emit(events.New(eventType, data)) })
}

func (w *Widget) emitError(message string) {
	w.emit(events.TypeError, map[string]interface{}{"message": message})
}

func (w *Widget) playSound(kind string) {
	if w.widget != nil && w.widget.SoundEnabled {
		w.later(func() { w.view.PlaySound(kind) })
	}
}

// unlockAndFlush publishes state to the view and runs queued side effects
// outside the lock, so handlers may call back into the widget.
func (w *Widget) unlockAndFlush() {
	w.version++
	state := w.snapshot()
	effects := w.outbox
	w.outbox = nil
	w.mu.Unlock()

	w.viewMu.Lock()
	if state.Version > w.rendered {
		w.rendered = state.Version
		w.view.Render(state)
	}
	w.viewMu.Unlock()

	for _, fn := range effects {
		fn()
	}
}

func (w *Widget) snapshot() ViewState {
	s := ViewState{
		Version:          w.version,
		Mounted:          w.phase == phaseReady,
		Stylesheet:       w.stylesheet,
		Open:             w.isOpen,
		Connected:        w.isConnected,
		Online:           w.businessOpen,
		Status:           w.status,
		Transcript:       append([]entity.ChatMessage(nil), w.transcript...),
		Unread:           w.unread,
		Badge:            theme.BadgeText(w.unread),
		Typing:           w.typingLabel,
		IntakeVisible:    w.intake,
		Input:            w.input,
		Reaction:         w.reaction,
		PoweredByVisible: w.poweredBy,
	}
	if s.Mounted {
		s.StyleID = theme.StyleElementID
	}
	if w.widget != nil {
		s.ToggleIcon = theme.BubbleIcon(w.widget.ChatBubbleStyle)
		s.Title = w.widget.Name
		s.AgentName = w.widget.AgentName
		s.RequireName = w.widget.RequireName
		s.RequireEmail = w.widget.RequireEmail
		s.AllowFileUploads = w.widget.AllowFileUploads
	}
	return s
}

func (w *Widget) now() string {
	return entity.FormatTimestamp(w.clock.Now())
}

// localID builds "<prefix><unix ms>", suffixed when that id is taken.
func (w *Widget) localID(prefix string) string {
	base := prefix + strconv.FormatInt(w.clock.Now().UnixMilli(), 10)
	id := base
	for n := 1; w.hasMessage(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}

func (w *Widget) hasMessage(id string) bool {
	for i := range w.transcript {
		if w.transcript[i].Id == id {
			return true
		}
	}
	for i := range w.messages {
		if w.messages[i].Id == id {
			return true
		}
	}
	return false
}

func (w *Widget) systemMessage(id, content, author string) entity.ChatMessage {
	return entity.ChatMessage{
		Id:          id,
		Content:     content,
		AuthorType:  entity.AuthorSystem,
		AuthorName:  author,
		CreatedAt:   w.now(),
		MessageType: entity.MessageTypeText,
	}
}

// addMessage records msg in the history, displays it and persists it.
func (w *Widget) addMessage(msg entity.ChatMessage) {
	w.messages = append(w.messages, msg)
	w.transcript = append(w.transcript, msg)
	w.store.AddMessage(msg)
	w.store.UpdateSessionActivity()
}

// display shows msg without adding it to the history.
func (w *Widget) display(msg entity.ChatMessage) {
	w.transcript = append(w.transcript, msg)
}

func (w *Widget) showError(text string) {
	w.display(w.systemMessage(w.localID("error-"), "⚠️ "+text, "System"))
	w.playSound(SoundError)
}

// showGreeting displays the greeting once per widget lifetime.
func (w *Widget) showGreeting() {
	if w.greeted || w.widget == nil || w.widget.Greeting() == "" {
		return
	}
	w.greeted = true
	w.display(w.systemMessage(w.localID("welcome-"), w.widget.Greeting(), w.widget.AgentName))
}

func messagePayload(m entity.ChatMessage) map[string]interface{} {
	return map[string]interface{}{
		"id":           m.Id,
		"content":      m.Content,
		"author_type":  m.AuthorType,
		"author_name":  m.AuthorName,
		"created_at":   m.CreatedAt,
		"message_type": m.MessageType,
		"is_private":   m.IsPrivate,
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
