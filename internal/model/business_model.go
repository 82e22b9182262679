package model

import (
	"time"

	"github.com/google/uuid"
)

type Business struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string    `gorm:"type:text;not null"`
	Channel        string    `gorm:"type:varchar(30);not null;uniqueIndex:ux_businesses_address,priority:1"`
	ChannelAddress string    `gorm:"type:varchar(50);not null;uniqueIndex:ux_businesses_address,priority:2"`
	Language       string    `gorm:"type:varchar(10);default:'es'"`
	AdminEmail     string    `gorm:"type:varchar(255)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (Business) TableName() string {
	return "businesses"
}
