package mapper

import (
	"time"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/model"
)

type NotificationMapper struct{}

func NewNotificationMapper() *NotificationMapper {
	return &NotificationMapper{}
}

func (m *NotificationMapper) ToEntity(n *model.Notification) *entity.Notification {
	if n == nil {
		return nil
	}

	var updatedAt *time.Time
	if !n.UpdatedAt.IsZero() {
		t := n.UpdatedAt
		updatedAt = &t
	}

	return &entity.Notification{
		Id:            n.Id,
		BusinessId:    n.BusinessId,
		ChatSessionId: n.ChatSessionId,
		Reason:        n.Reason,
		Message:       n.Message,
		Status:        n.Status,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *NotificationMapper) ToModel(n *entity.Notification) *model.Notification {
	if n == nil {
		return nil
	}

	var updatedAt time.Time
	if n.UpdatedAt != nil {
		updatedAt = *n.UpdatedAt
	}

	return &model.Notification{
		Id:            n.Id,
		BusinessId:    n.BusinessId,
		ChatSessionId: n.ChatSessionId,
		Reason:        n.Reason,
		Message:       n.Message,
		Status:        n.Status,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *NotificationMapper) BusinessToEntity(b *model.Business) *entity.Business {
	if b == nil {
		return nil
	}
	return &entity.Business{
		Id:             b.Id,
		Name:           b.Name,
		Channel:        b.Channel,
		ChannelAddress: b.ChannelAddress,
		Language:       b.Language,
		AdminEmail:     b.AdminEmail,
		CreatedAt:      b.CreatedAt,
	}
}
