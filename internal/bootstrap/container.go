package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-bookingchat-be/internal/config"
	"ai-bookingchat-be/internal/controller"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/pkg/mailer"
	"ai-bookingchat-be/internal/repository/unitofwork"
	"ai-bookingchat-be/internal/service"
	"ai-bookingchat-be/internal/websocket"
	"ai-bookingchat-be/pkg/channel"
	enginecache "ai-bookingchat-be/pkg/engine/cache"
	"ai-bookingchat-be/pkg/engine/dedup"
	"ai-bookingchat-be/pkg/engine/escalation"
	"ai-bookingchat-be/pkg/engine/flow"
	"ai-bookingchat-be/pkg/engine/goal"
	"ai-bookingchat-be/pkg/engine/persist"
	"ai-bookingchat-be/pkg/engine/proxy"
	"ai-bookingchat-be/pkg/engine/resolver"

	pktNats "ai-bookingchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	WebhookController      controller.IWebhookController
	NotificationController controller.INotificationController

	// Background Services (Exposed for main.go to run)
	NotifierService service.INotifierService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Engine Components
	idempotency := dedup.NewIdempotencyCache(rdb, cfg.Engine.IdempotencyTTL, sysLogger)
	sessionCache := enginecache.NewSessionCache(rdb, cfg.Engine.LocalCacheSize, cfg.Engine.CacheTTL, sysLogger)
	outbox := persist.NewOutbox(uowFactory, cfg.Engine.OutboxFlushInterval, cfg.Engine.OutboxMaxAttempts, sysLogger)
	persister := persist.NewPersister(sessionCache, outbox, cfg.Engine.DedupWindowSeconds, sysLogger)

	sessionResolver := resolver.NewResolver(uowFactory, sessionCache, outbox, cfg.Engine.SessionTimeoutHours, cfg.Engine.HistoryCarryLimit, sysLogger)
	goalManager := goal.NewManager(sysLogger)

	orchestrator := escalation.NewOrchestrator(
		uowFactory,
		pubSub,
		cfg.Engine.FrustrationMinCount,
		cfg.Engine.FrustrationLookback,
		sysLogger,
	)

	sender := channel.NewHTTPSender(cfg.App.ChannelGatewayURL, sysLogger)
	proxyRouter := proxy.NewRouter(sessionCache, sender, orchestrator, sysLogger)

	flowRegistry, err := flow.NewRegistry(sysLogger,
		flow.NewScriptedHandler(flow.GoalTypeBooking, []flow.ScriptStep{
			{Key: "service", Prompt: "What would you like to book?"},
			{Key: "date", Prompt: "What day works for you?"},
			{Key: "time", Prompt: "And what time?"},
		}, "You're booked in. See you then!"),
		flow.NewScriptedHandler(flow.GoalTypeCancellation, []flow.ScriptStep{
			{Key: "booking_ref", Prompt: "Which booking should I cancel?"},
		}, "Your booking has been cancelled."),
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to build flow registry: %v", err)
	}

	// Background engine workers; both spawn their own goroutines.
	workerCtx := context.Background()
	outbox.Start(workerCtx)
	sessionCache.StartSweeper(workerCtx, time.Hour)

	// 4. Services
	conversationService := service.NewConversationService(
		uowFactory,
		idempotency,
		sessionResolver,
		sessionCache,
		goalManager,
		persister,
		orchestrator,
		proxyRouter,
		flowRegistry,
		sender,
		cfg.Engine.ConflictRetryBudget,
		sysLogger,
	)

	notificationService := service.NewNotificationService(uowFactory, orchestrator, sysLogger)
	notifierService := service.NewNotifierService(uowFactory, pubSub, wsHub, emailService, natsPub, wsLogger)

	// 5. Controllers
	return &Container{
		WebhookController:      controller.NewWebhookController(conversationService),
		NotificationController: controller.NewNotificationController(notificationService, wsHub, wsLogger),
		NotifierService:        notifierService,
		WebSocketHub:           wsHub,
	}
}
