package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender is a message author, keyed by phone when the export carries one
// and by display name otherwise.
type Sender struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SenderKey string    `gorm:"type:text;not null;uniqueIndex" json:"sender_key"`

	Phone       *string `gorm:"type:text;uniqueIndex" json:"phone,omitempty"`
	DisplayName string  `gorm:"type:text;not null;index" json:"display_name"`

	FirstSeen time.Time `gorm:"not null;default:now()" json:"first_seen"`
	LastSeen  time.Time `gorm:"not null;default:now();index" json:"last_seen"`
}

func (Sender) TableName() string { return "senders" }
