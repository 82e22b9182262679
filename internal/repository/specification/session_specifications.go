package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByChannelUser scopes a query to one (channel, external user, business)
// conversation identity.
type ByChannelUser struct {
	Channel       string
	ChannelUserID string
	BusinessID    uuid.UUID
}

func (s ByChannelUser) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("channel = ? AND channel_user_id = ? AND business_id = ?",
		s.Channel, s.ChannelUserID, s.BusinessID)
}

// UpdatedSince keeps only sessions still inside the inactivity window.
type UpdatedSince struct {
	Since time.Time
}

func (s UpdatedSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("updated_at >= ?", s.Since)
}

type UpdatedBefore struct {
	Before time.Time
}

func (s UpdatedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("updated_at < ?", s.Before)
}

type ByBusinessID struct {
	BusinessID uuid.UUID
}

func (s ByBusinessID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("business_id = ?", s.BusinessID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

type ByChannelAddress struct {
	Channel string
	Address string
}

func (s ByChannelAddress) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("channel = ? AND channel_address = ?", s.Channel, s.Address)
}

type NotEnded struct{}

func (s NotEnded) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("ended = false")
}
