package implementation

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ai-bookingchat-be/internal/entity"
	"ai-bookingchat-be/internal/mapper"
	"ai-bookingchat-be/internal/model"
	"ai-bookingchat-be/internal/repository/contract"
	"ai-bookingchat-be/internal/repository/specification"
)

type BusinessRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.NotificationMapper
}

func NewBusinessRepository(db *gorm.DB) contract.BusinessRepository {
	return &BusinessRepositoryImpl{
		db:     db,
		mapper: mapper.NewNotificationMapper(),
	}
}

func (r *BusinessRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Business, error) {
	var m model.Business
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.BusinessToEntity(&m), nil
}
