package handler

import (
	"errors"
	"fmt"
	"time"

	"tms-widget/internal/dto"
	"tms-widget/internal/entity"
	"tms-widget/internal/pkg/logger"
	"tms-widget/internal/service"
	internalWS "tms-widget/internal/websocket"
	"tms-widget/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const handlerModule = "WidgetHandler"

type WidgetHandler struct {
	widgets service.IWidgetRegistryService
	chat    service.IChatService
	hub     *internalWS.Hub
	logger  logger.ILogger
	now     func() time.Time
}

func NewWidgetHandler(widgets service.IWidgetRegistryService, chat service.IChatService, hub *internalWS.Hub, log logger.ILogger) *WidgetHandler {
	return &WidgetHandler{
		widgets: widgets,
		chat:    chat,
		hub:     hub,
		logger:  log,
		now:     time.Now,
	}
}

// GetWidgetByDomain returns the public configuration of the widget serving domain.
func (h *WidgetHandler) GetWidgetByDomain(c *fiber.Ctx) error {
	widget, err := h.widgets.GetByDomain(c.Params("domain"))
	if err != nil {
		if errors.Is(err, service.ErrWidgetNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Widget not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(widget)
}

// MarkMessagesAsRead records that the visitor has seen the agent messages of a session.
func (h *WidgetHandler) MarkMessagesAsRead(c *fiber.Ctx) error {
	sessionId := c.Params("sessionId")
	if sessionId == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Session ID is required"})
	}
	marked := h.chat.MarkRead(c.UserContext(), sessionId)
	return c.JSON(dto.MarkReadResponse{SessionId: sessionId, Marked: marked})
}

// ServeWs authenticates the session token and upgrades the connection.
func (h *WidgetHandler) ServeWs(c *fiber.Ctx) error {
	widgetId := c.Params("widgetId")
	if _, err := h.widgets.GetById(widgetId); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Widget not found"})
	}

	// The key is the public widget id: the token only binds the socket to a
	// session created for this widget.
	compact := c.Params("token")
	res, err := token.Verify(compact, []byte(widgetId),
		token.WithRequiredClaims("session_id", "widget_id"),
		token.WithTimeFunc(h.now),
	)
	if err != nil {
		h.logger.Warn(handlerModule, "Invalid token in WS handshake", rejectedTokenDetails(compact, widgetId, err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if res.Claims.String("widget_id") != widgetId {
		h.logger.Warn(handlerModule, "Token does not belong to this widget", map[string]interface{}{"widget_id": widgetId, "token_widget_id": res.Claims.String("widget_id")})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token does not belong to this widget"})
	}
	sessionId := res.Claims.String("session_id")
	if sessionId == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing session_id"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info(handlerModule, "Starting WebSocket session", map[string]interface{}{"session_id": sessionId, "widget_id": widgetId})
			internalWS.ServeWs(h.hub, conn, sessionId, widgetId, h.chat.HandleInbound)
			h.logger.Info(handlerModule, "WebSocket session ended", map[string]interface{}{"session_id": sessionId})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// rejectedTokenDetails describes a token that failed verification. The header
// and claims are read unverified and only end up in logs.
func rejectedTokenDetails(compact, widgetId string, err error) map[string]interface{} {
	details := map[string]interface{}{"widget_id": widgetId, "error": err.Error(), "code": token.ErrorCode(err)}
	if header, herr := token.DecodeProtectedHeader(compact); herr == nil {
		details["alg"] = fmt.Sprint(header["alg"])
	}
	if claims, cerr := token.DecodeClaims(compact); cerr == nil {
		details["session_id"] = claims.String("session_id")
		details["token_widget_id"] = claims.String("widget_id")
	}
	return details
}

// PushFrame injects an agent-side frame into a session. Development only.
func (h *WidgetHandler) PushFrame(c *fiber.Ctx) error {
	type Request struct {
		Type    string             `json:"type"`
		Message entity.ChatMessage `json:"message"`
		Agent   string             `json:"agent"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessionId := c.Params("sessionId")
	if req.Agent == "" {
		req.Agent = "Support"
	}

	var err error
	switch req.Type {
	case dto.FrameChatMessage:
		if req.Message.Content == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message content is required"})
		}
		if req.Message.AuthorType == "" {
			req.Message.AuthorType = entity.AuthorAgent
		}
		if req.Message.AuthorName == "" {
			req.Message.AuthorName = req.Agent
		}
		err = h.chat.Deliver(sessionId, req.Message)
	case dto.FrameAgentJoined:
		err = h.chat.SendFrame(sessionId, req.Type, dto.AgentJoinedData{AgentName: req.Agent})
	case dto.FrameTypingStart, dto.FrameTypingStop:
		err = h.chat.SendFrame(sessionId, req.Type, dto.TypingData{AuthorType: entity.AuthorAgent, AuthorName: req.Agent})
	case dto.FrameSessionUpdate:
		err = h.chat.SendFrame(sessionId, req.Type, dto.SessionUpdateData{Status: entity.SessionStatusEnded})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported frame type"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"status": "Frame Queued", "connected": h.hub.Connected(sessionId)})
}

// RegisterRoutes registers the public chat routes.
func (h *WidgetHandler) RegisterRoutes(router fiber.Router) {
	chat := router.Group("/public/chat")
	chat.Get("/widgets/domain/:domain", h.GetWidgetByDomain)
	chat.Post("/sessions/:sessionId/read", h.MarkMessagesAsRead)

	// WebSocket
	chat.Get("/ws/widgets/:widgetId/chat/:token", h.ServeWs)

	debug := router.Group("/debug")
	debug.Post("/sessions/:sessionId/frames", h.PushFrame)
}
