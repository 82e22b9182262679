package entity

import (
	"time"

	"github.com/google/uuid"
)

// Business is a tenant row. ChannelAddress is the inbound channel number
// the tenant owns (e.g. the WhatsApp business number) and is how a
// webhook without an explicit business id is attributed.
type Business struct {
	Id             uuid.UUID
	Name           string
	Channel        string
	ChannelAddress string
	Language       string
	AdminEmail     string
	CreatedAt      time.Time
}
