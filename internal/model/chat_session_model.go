package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatSession struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Channel       string         `gorm:"type:varchar(30);not null;index:idx_chat_sessions_user,priority:1"`
	ChannelUserId string         `gorm:"type:varchar(50);not null;index:idx_chat_sessions_user,priority:2"`
	BusinessId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Messages      datatypes.JSON `gorm:"type:jsonb"`
	Ended         bool           `gorm:"default:false"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index:idx_chat_sessions_user,priority:3"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
