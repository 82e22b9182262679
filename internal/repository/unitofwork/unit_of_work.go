package unitofwork

import (
	"context"

	"ai-bookingchat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	UserContextRepository() contract.UserContextRepository
	NotificationRepository() contract.NotificationRepository
	BusinessRepository() contract.BusinessRepository
}
