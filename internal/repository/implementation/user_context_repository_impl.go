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

type UserContextRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewUserContextRepository(db *gorm.DB) contract.UserContextRepository {
	return &UserContextRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *UserContextRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *UserContextRepositoryImpl) Create(ctx context.Context, userContext *entity.UserContext) error {
	m := r.mapper.UserContextToModel(userContext)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*userContext = *r.mapper.UserContextToEntity(m)
	return nil
}

func (r *UserContextRepositoryImpl) Update(ctx context.Context, userContext *entity.UserContext) error {
	m := r.mapper.UserContextToModel(userContext)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*userContext = *r.mapper.UserContextToEntity(m)
	return nil
}

func (r *UserContextRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.UserContext, error) {
	var m model.UserContext
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.UserContextToEntity(&m), nil
}
