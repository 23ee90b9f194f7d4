package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"tms-widget/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel carries frames between devserver instances.
const ClusterChannel = "widget_chat_events"

type Hub struct {
	// Registered clients: session id -> peers (several tabs may share a session)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	// done is closed when Run returns.
	done chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance delivery, nil when running alone
	rdb        *redis.Client
	instanceId string

	logger logger.ILogger
}

type clusterFrame struct {
	Origin          string          `json:"origin"`
	TargetSessionId string          `json:"target_session_id"`
	Message         json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionId] = append(h.clients[client.SessionId], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionId})

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		}
	}
}

// remove drops client and closes its queue. Callers hold the write lock.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.SessionId]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionId] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.SessionId]) == 0 {
		delete(h.clients, client.SessionId)
		h.logger.Info("Hub", "Session has no peers left", map[string]interface{}{"session_id": client.SessionId})
	}
}

// Connected reports whether any local peer serves sessionId.
func (h *Hub) Connected(sessionId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionId]) > 0
}

// Send delivers a frame to every peer of sessionId, here and on other
// instances.
func (h *Hub) Send(sessionId string, data []byte) {
	h.deliverLocal(sessionId, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterFrame{Origin: h.instanceId, TargetSessionId: sessionId, Message: data})
		if err := h.rdb.Publish(context.Background(), ClusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish frame to Redis", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliverLocal(sessionId string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range append([]*Client(nil), h.clients[sessionId]...) {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping peer", map[string]interface{}{"session_id": sessionId})
			h.remove(client)
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var frame clusterFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			h.logger.Warn("Hub", "Redis frame parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if frame.Origin == h.instanceId {
			continue
		}
		h.deliverLocal(frame.TargetSessionId, frame.Message)
	}
}
