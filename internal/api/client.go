// Package api talks to the chat backend and mints session tokens.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tms-widget/internal/config"
	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/pkg/logger"
	"tms-widget/internal/storage"
	"tms-widget/pkg/token"
)

// SessionTTL is the lifetime of a minted session token.
const SessionTTL = 24 * time.Hour

const moduleName = "API"

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Failed to %s: %s", e.Op, e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
	storage *storage.Manager
	logger  logger.ILogger
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l logger.ILogger) Option {
	return func(c *Client) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient targets baseURL, or the local development backend when empty.
func NewClient(baseURL string, store *storage.Manager, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = config.DefaultAPIURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		storage: store,
		logger:  logger.NewNopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

// GetWidgetByDomain fetches the widget configuration served for domain.
func (c *Client) GetWidgetByDomain(ctx context.Context, domain string) (*entity.WidgetConfig, error) {
	endpoint := fmt.Sprintf("%s/public/chat/widgets/domain/%s", c.baseURL, url.PathEscape(domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get widget: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Op: "get widget", StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	var widget entity.WidgetConfig
	if err := json.NewDecoder(resp.Body).Decode(&widget); err != nil {
		return nil, fmt.Errorf("failed to decode widget: %w", err)
	}
	return &widget, nil
}

// CreateSessionToken returns the cached token pair when it still verifies
// against widgetId, otherwise mints, caches and returns a new one.
//
// The signing key is the widget id, which is public. The token proves
// session continuity for this browser, not identity; the backend has to
// authorize on its own.
func (c *Client) CreateSessionToken(widgetId string, req dto.InitiateChatRequest) (*dto.SessionToken, error) {
	key := []byte(widgetId)

	if cached := c.storage.GetSessionToken(); cached != nil {
		if c.VerifySessionToken(widgetId, cached.ChatSessionToken) {
			return cached, nil
		}
		c.logger.Debug(moduleName, "Cached session token rejected, minting a new one", map[string]interface{}{"session_id": cached.SessionId})
	}

	now := c.now()
	prefix := req.VisitorInfo.Fingerprint
	if prefix == "" {
		prefix = "anon"
	}
	sessionId := prefix + "_" + strconv.FormatInt(now.UnixMilli(), 10)

	claims := token.Claims{
		"session_id":    sessionId,
		"widget_id":     widgetId,
		"visitor_name":  req.VisitorName,
		"visitor_email": req.VisitorEmail,
		"visitor_info":  req.VisitorInfo,
		"timestamp":     now.UnixMilli(),
	}
	signed, err := token.Sign(claims, key,
		token.WithExpiresIn(SessionTTL),
		token.WithSignTime(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	pair := dto.SessionToken{ChatSessionToken: signed, SessionId: sessionId}
	c.storage.SaveSessionToken(pair)
	return &pair, nil
}

// VerifySessionToken reports whether compact verifies with widgetId as key.
func (c *Client) VerifySessionToken(widgetId, compact string) bool {
	_, err := token.Verify(compact, []byte(widgetId), token.WithTimeFunc(c.now))
	return err == nil
}

// InitiateChat obtains session credentials. The backend creates its session
// record when the token is first presented over the WebSocket.
func (c *Client) InitiateChat(ctx context.Context, widgetId string, req dto.InitiateChatRequest) (*dto.InitiateChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := c.CreateSessionToken(widgetId, req)
	if err != nil {
		return nil, err
	}
	c.logger.Info(moduleName, "Chat session initiated", map[string]interface{}{"session_id": pair.SessionId, "widget_id": widgetId})
	return &dto.InitiateChatResponse{SessionToken: pair.ChatSessionToken, SessionId: pair.SessionId}, nil
}

// MarkMessagesAsRead notifies the backend that the visitor read the session.
func (c *Client) MarkMessagesAsRead(ctx context.Context, sessionId string) error {
	endpoint := fmt.Sprintf("%s/public/chat/sessions/%s/read", c.baseURL, url.PathEscape(sessionId))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to mark messages as read: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: "mark messages as read", StatusCode: resp.StatusCode, Status: statusText(resp)}
	}
	return nil
}

// WebSocketURL builds the chat socket address by swapping the scheme of the
// base URL, so https becomes wss.
func (c *Client) WebSocketURL(sessionToken, widgetId string) string {
	return fmt.Sprintf("%s/public/chat/ws/widgets/%s/chat/%s",
		strings.Replace(c.baseURL, "http", "ws", 1), widgetId, sessionToken)
}

func statusText(resp *http.Response) string {
	if t := http.StatusText(resp.StatusCode); t != "" {
		return t
	}
	return resp.Status
}
