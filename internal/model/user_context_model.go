package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserContext struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Channel       string         `gorm:"type:varchar(30);not null;uniqueIndex:ux_user_contexts_user,priority:1"`
	ChannelUserId string         `gorm:"type:varchar(50);not null;uniqueIndex:ux_user_contexts_user,priority:2"`
	BusinessId    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_user_contexts_user,priority:3"`
	CurrentGoal   datatypes.JSON `gorm:"type:jsonb"`
	PreviousGoal  datatypes.JSON `gorm:"type:jsonb"`
	Preferences   datatypes.JSON `gorm:"type:jsonb"`
	SessionData   datatypes.JSON `gorm:"type:jsonb"`
	TopicSummary  string         `gorm:"type:text"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (UserContext) TableName() string {
	return "user_contexts"
}
