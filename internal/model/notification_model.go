package model

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BusinessId    uuid.UUID `gorm:"type:uuid;not null;index:idx_notifications_business_status,priority:1"`
	ChatSessionId string    `gorm:"type:varchar(50);not null"`
	Reason        string    `gorm:"type:varchar(30);not null"`
	Message       string    `gorm:"type:text;not null"`
	Status        string    `gorm:"type:varchar(20);not null;default:'pending';index:idx_notifications_business_status,priority:2"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}
