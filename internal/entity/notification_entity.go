package entity

import (
	"time"

	"github.com/google/uuid"
)

// Notification records one escalation event. Status moves
// pending -> attending -> one of the terminal resolutions; the bot never
// touches it again once resolved.
type Notification struct {
	Id            uuid.UUID
	BusinessId    uuid.UUID
	ChatSessionId string // session id, or the "system" sentinel for non-chat notifications
	Reason        string
	Message       string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}
