package entity

import (
	"time"

	"github.com/google/uuid"

	"ai-bookingchat-be/pkg/store"
)

// ChatSession is one bounded conversational episode. A session is active
// while now - UpdatedAt is inside the inactivity timeout; it is never
// closed explicitly, only aged out. Ended is a best-effort marker set
// asynchronously when a newer session supersedes it.
type ChatSession struct {
	Id            uuid.UUID
	Channel       string
	ChannelUserId string
	BusinessId    uuid.UUID
	Messages      []store.Message
	Ended         bool
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}
