package contract

import (
	"context"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/repository/specification"
)

type UserContextRepository interface {
	Create(ctx context.Context, userContext *entity.UserContext) error
	Update(ctx context.Context, userContext *entity.UserContext) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.UserContext, error)
}
