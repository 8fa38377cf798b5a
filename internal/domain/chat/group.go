package chat

import (
	"time"

	"github.com/google/uuid"
)

// Group is one conversation group. GroupKey is the stable external
// identifier (registry entry or derived export key); the core treats it
// as opaque.
type Group struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GroupKey string    `gorm:"type:text;not null;uniqueIndex" json:"group_key"`

	Name        string `gorm:"type:text;not null;index" json:"name"`
	University  string `gorm:"type:text;not null;default:''" json:"university"`
	Category    string `gorm:"type:text;not null;default:'general'" json:"category"`
	MemberCount int    `gorm:"not null;default:0" json:"member_count"`

	LastIngestedAt *time.Time `gorm:"index" json:"last_ingested_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Group) TableName() string { return "groups" }
