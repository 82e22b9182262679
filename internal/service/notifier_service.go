package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"ai-bookingchat-be/internal/dto"
	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/pkg/mailer"
	"ai-bookingchat-be/internal/repository/specification"
	"ai-bookingchat-be/internal/repository/unitofwork"
	"ai-bookingchat-be/internal/websocket"
	"ai-bookingchat-be/pkg/engine/escalation"
	"ai-bookingchat-be/pkg/events"
	"ai-bookingchat-be/pkg/nats"
)

// INotifierService fans one recorded escalation out to the channels
// operators actually watch. Delivery is best effort; the notification
// row is already durable by the time this runs.
type INotifierService interface {
	Start(ctx context.Context) error
}

type notifierService struct {
	uowFactory    unitofwork.RepositoryFactory
	subscriber    message.Subscriber
	hub           *websocket.Hub
	emailService  mailer.IEmailService
	natsPublisher *nats.Publisher
	logger        logger.ILogger
}

func NewNotifierService(
	uowFactory unitofwork.RepositoryFactory,
	subscriber message.Subscriber,
	hub *websocket.Hub,
	emailService mailer.IEmailService,
	natsPublisher *nats.Publisher,
	log logger.ILogger,
) INotifierService {
	return &notifierService{
		uowFactory:    uowFactory,
		subscriber:    subscriber,
		hub:           hub,
		emailService:  emailService,
		natsPublisher: natsPublisher,
		logger:        log,
	}
}

func (ns *notifierService) Start(ctx context.Context) error {
	messages, err := ns.subscriber.Subscribe(ctx, escalation.EscalationCreatedTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ns.handle(ctx, msg)
			msg.Ack()
		}
	}()

	return nil
}

func (ns *notifierService) handle(ctx context.Context, msg *message.Message) {
	var event escalation.EscalationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		ns.logger.Error("NotifierService", "Unreadable escalation event", map[string]interface{}{"error": err.Error()})
		return
	}

	businessID, err := uuid.Parse(event.BusinessID)
	if err != nil {
		ns.logger.Error("NotifierService", "Bad business id in event", map[string]interface{}{"business_id": event.BusinessID})
		return
	}

	uow := ns.uowFactory.NewUnitOfWork(ctx)
	business, err := uow.BusinessRepository().FindOne(ctx, specification.ByID{ID: businessID})
	if err != nil || business == nil {
		ns.logger.Error("NotifierService", "Business lookup failed for escalation", map[string]interface{}{
			"business_id": event.BusinessID,
		})
		return
	}

	if ns.hub != nil {
		ns.hub.Send(businessID, eventToResponse(&event))
	}

	if ns.emailService != nil && business.AdminEmail != "" {
		if err := ns.emailService.SendEscalationAlert(business.AdminEmail, event.Reason, event.ChatSessionID, event.Message); err != nil {
			ns.logger.Warn("NotifierService", "Escalation email failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if ns.natsPublisher != nil {
		ns.publishExternal(ctx, &event, business)
	}
}

func (ns *notifierService) publishExternal(ctx context.Context, event *escalation.EscalationEvent, business *entity.Business) {
	err := ns.natsPublisher.Publish(ctx, events.BaseEvent{
		Type: "ESCALATION_CREATED",
		Data: map[string]interface{}{
			"notification_id": event.NotificationID,
			"business_id":     event.BusinessID,
			"business_name":   business.Name,
			"chat_session_id": event.ChatSessionID,
			"reason":          event.Reason,
			"message":         event.Message,
		},
		OccurredAt: time.Now(),
	})
	if err != nil {
		ns.logger.Warn("NotifierService", "External event publish failed", map[string]interface{}{"error": err.Error()})
	}
}

func eventToResponse(event *escalation.EscalationEvent) *dto.NotificationResponse {
	id, _ := uuid.Parse(event.NotificationID)
	businessID, _ := uuid.Parse(event.BusinessID)
	return &dto.NotificationResponse{
		Id:            id,
		BusinessId:    businessID,
		ChatSessionId: event.ChatSessionID,
		Reason:        event.Reason,
		Message:       event.Message,
		Status:        "pending",
		CreatedAt:     event.CreatedAt,
	}
}
