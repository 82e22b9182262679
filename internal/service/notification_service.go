package service

import (
	"context"

	"github.com/google/uuid"

	"ai-bookingchat-be/internal/dto"
	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/repository/specification"
	"ai-bookingchat-be/internal/repository/unitofwork"
	"ai-bookingchat-be/pkg/engine/escalation"
)

// INotificationService is the dashboard read/resolution surface over the
// notification table. Resolution goes through the same orchestrator
// rules as the chat-channel resolve command.
type INotificationService interface {
	List(ctx context.Context, businessID uuid.UUID, status string, limit, offset int) ([]*dto.NotificationResponse, error)
	Resolve(ctx context.Context, notificationID uuid.UUID, status string) (*dto.NotificationResponse, error)
	Attend(ctx context.Context, notificationID uuid.UUID) (*dto.NotificationResponse, error)
}

type notificationService struct {
	uowFactory  unitofwork.RepositoryFactory
	escalations *escalation.Orchestrator
	logger      logger.ILogger
}

func NewNotificationService(uowFactory unitofwork.RepositoryFactory, escalations *escalation.Orchestrator, log logger.ILogger) INotificationService {
	return &notificationService{
		uowFactory:  uowFactory,
		escalations: escalations,
		logger:      log,
	}
}

func (ns *notificationService) List(ctx context.Context, businessID uuid.UUID, status string, limit, offset int) ([]*dto.NotificationResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	specs := []specification.Specification{
		specification.ByBusinessID{BusinessID: businessID},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{N: limit, Offset: offset},
	}
	if status != "" {
		specs = append(specs, specification.ByStatus{Status: status})
	}

	uow := ns.uowFactory.NewUnitOfWork(ctx)
	notifications, err := uow.NotificationRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, notificationToResponse(n))
	}
	return responses, nil
}

func (ns *notificationService) Resolve(ctx context.Context, notificationID uuid.UUID, status string) (*dto.NotificationResponse, error) {
	if !escalation.IsTerminalStatus(status) {
		return nil, escalation.ErrInvalidStatus
	}
	notification, err := ns.escalations.Resolve(ctx, &escalation.ResolveCommand{
		Status:         status,
		NotificationID: notificationID,
	})
	if err != nil {
		return nil, err
	}
	return notificationToResponse(notification), nil
}

func (ns *notificationService) Attend(ctx context.Context, notificationID uuid.UUID) (*dto.NotificationResponse, error) {
	notification, err := ns.escalations.Attend(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	return notificationToResponse(notification), nil
}

func notificationToResponse(n *entity.Notification) *dto.NotificationResponse {
	return &dto.NotificationResponse{
		Id:            n.Id,
		BusinessId:    n.BusinessId,
		ChatSessionId: n.ChatSessionId,
		Reason:        n.Reason,
		Message:       n.Message,
		Status:        n.Status,
		CreatedAt:     n.CreatedAt,
	}
}
