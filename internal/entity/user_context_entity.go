package entity

import (
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/pkg/store"
)

// UserContext is the durable, business-scoped user state that outlives
// any single session. At most one row exists per (channel user, business)
// pair; it is created lazily on first contact and never deleted here.
type UserContext struct {
	Id            uuid.UUID
	Channel       string
	ChannelUserId string
	BusinessId    uuid.UUID
	CurrentGoal   *store.Goal
	PreviousGoal  *store.Goal
	Preferences   store.Preferences
	SessionData   map[string]interface{}
	TopicSummary  string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}
