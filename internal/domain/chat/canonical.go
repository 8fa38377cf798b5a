package chat

import (
	"time"

	"gorm.io/datatypes"
)

// CanonicalMessage is one fingerprint's global identity across groups.
// Exactly one row per distinct fingerprint; occurrence_total always
// equals the sum of per-group counts after reconciliation. Rows are
// never deleted while raw rows reference the fingerprint.
type CanonicalMessage struct {
	Fingerprint string `gorm:"type:text;primaryKey" json:"fingerprint"`

	// Content is the representative text: the earliest-seen occurrence.
	Content string `gorm:"type:text;not null" json:"content"`

	FirstSeen time.Time `gorm:"not null;default:now()" json:"first_seen"`
	LastSeen  time.Time `gorm:"not null;default:now();index" json:"last_seen"`

	OccurrenceTotal int64 `gorm:"not null;default:1" json:"occurrence_total"`

	// GroupsSeen is a sorted, de-duplicated JSONB array of group keys.
	GroupsSeen datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"groups_seen"`

	// NeedsReview is set when reconciliation detects state it must not
	// auto-correct (e.g. representative text disagreement).
	NeedsReview bool `gorm:"not null;default:false;index" json:"needs_review"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CanonicalMessage) TableName() string { return "canonical_messages" }
