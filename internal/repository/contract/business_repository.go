package contract

import (
	"context"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/repository/specification"
)

type BusinessRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Business, error)
}
