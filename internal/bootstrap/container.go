package bootstrap

import (
	"context"
	"fmt"

	"tms-widget/internal/config"
	"tms-widget/internal/entity"
	"tms-widget/internal/handler"
	"tms-widget/internal/pkg/logger"
	"tms-widget/internal/service"
	"tms-widget/internal/websocket"
	"tms-widget/pkg/events"

	pktNats "tms-widget/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// auditDurable is the JetStream consumer that mirrors chat events into the log.
const auditDurable = "devserver-audit"

type Container struct {
	Logger logger.ILogger

	WidgetHandler *handler.WidgetHandler
	WebSocketHub  *websocket.Hub

	// Background Services (started by Start)
	ConsumerService service.IConsumerService

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
}

// NewContainer wires the devserver. NATS and Redis are optional: when their
// URL is empty or unreachable the devserver runs standalone.
func NewContainer(cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Widget registry
	widgets := []entity.WidgetConfig{service.DemoWidget()}
	if cfg.App.WidgetsFile != "" {
		loaded, err := service.LoadWidgets(cfg.App.WidgetsFile)
		if err != nil {
			return nil, err
		}
		widgets = loaded
	}
	registry := service.NewWidgetRegistryService(widgets)
	sysLogger.Info("BOOTSTRAP", "Widgets loaded", map[string]interface{}{"count": len(widgets)})

	// 2. Event Bus
	c.pubSub = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	// 3. Infrastructure
	var eventPublisher service.EventPublisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsPub = pub
			eventPublisher = pub
		}
		sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsSub = sub
		}
	}

	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to Redis, hub runs standalone", map[string]interface{}{"error": err.Error()})
			rdb.Close()
		} else {
			c.rdb = rdb
		}
	}

	// 4. WebSocket Hub
	c.WebSocketHub = websocket.NewHub(c.rdb, sysLogger)

	// 5. Services
	publisherService := service.NewPublisherService(service.VisitorMessageTopic, c.pubSub)
	chatService := service.NewChatService(c.WebSocketHub, publisherService, eventPublisher, sysLogger)
	c.ConsumerService = service.NewConsumerService(c.pubSub, service.VisitorMessageTopic, registry, chatService, sysLogger)

	// 6. Handlers
	c.WidgetHandler = handler.NewWidgetHandler(registry, chatService, c.WebSocketHub, sysLogger)

	return c, nil
}

// Start runs the hub, the agent consumer and the NATS audit subscription
// until ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	if c.natsSub != nil {
		err := c.natsSub.Subscribe(ctx, events.TypeChatMessageCreated, auditDurable, func(_ context.Context, e events.Event) error {
			c.Logger.Info("AUDIT", "Chat message created", e.Payload())
			return nil
		})
		if err != nil {
			c.Logger.Warn("BOOTSTRAP", "Failed to subscribe to chat events", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	if err := c.pubSub.Close(); err != nil {
		c.Logger.Warn("BOOTSTRAP", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}
}
