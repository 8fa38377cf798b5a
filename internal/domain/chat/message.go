package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RawMessage is one ingested occurrence of a message body in a group.
// (group_id, source_key) is unique, so re-ingesting the same export is a
// no-op. The earliest row per (group_id, fingerprint) is the counting
// head: its occurrence_count is the per-group total for that fingerprint
// and later repeat rows carry a snapshot of the count at insert time, so
// the per-group count always reads as MAX(occurrence_count).
//
// content_tsv (a stored generated tsvector over content, added in
// migrations) is not mapped here; gorm leaves it to Postgres.
type RawMessage struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GroupID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_raw_group_source,priority:1" json:"group_id"`
	SenderID uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`

	SourceKey string `gorm:"type:text;not null;uniqueIndex:idx_raw_group_source,priority:2" json:"source_key"`

	Content        string `gorm:"type:text;not null" json:"content"`
	NormalizedText string `gorm:"type:text;not null" json:"normalized_text"`
	Fingerprint    string `gorm:"type:text;not null;index" json:"fingerprint"`

	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	FirstSeen time.Time `gorm:"not null;default:now()" json:"first_seen"`
	LastSeen  time.Time `gorm:"not null;default:now()" json:"last_seen"`

	OccurrenceCount int64 `gorm:"not null;default:1" json:"occurrence_count"`

	Links datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"links"`

	Processed         bool           `gorm:"not null;default:false;index" json:"processed"`
	ClaimedAt         *time.Time     `gorm:"index" json:"claimed_at,omitempty"`
	ExtractedEntities datatypes.JSON `gorm:"type:jsonb" json:"extracted_entities,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RawMessage) TableName() string { return "raw_messages" }
