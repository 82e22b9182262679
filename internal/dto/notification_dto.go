package dto

import (
	"time"

	"github.com/google/uuid"
)

type NotificationResponse struct {
	Id            uuid.UUID `json:"id"`
	BusinessId    uuid.UUID `json:"business_id"`
	ChatSessionId string    `json:"chat_session_id"`
	Reason        string    `json:"reason"`
	Message       string    `json:"message"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
