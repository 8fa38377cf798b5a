package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// Identity
		&types.Group{},
		&types.Sender{},

		// Dedup core
		&types.RawMessage{},
		&types.CanonicalMessage{},

		// Extraction outputs
		&types.ItemForSale{},
		&types.Apartment{},
	)
}

// EnsureSearchIndexes adds what AutoMigrate cannot express: the stored
// generated tsvector columns, their GIN indexes, and the composite
// uniqueness constraints the dedup invariants rely on. All statements
// are idempotent.
//
// The tsvector columns are GENERATED ALWAYS ... STORED, so the search
// index entry for a row is rebuilt in the same transaction that writes
// the row: queries issued after an ingest call returns always see its
// writes.
func EnsureSearchIndexes(db *gorm.DB) error {
	stmts := []string{
		`ALTER TABLE IF EXISTS raw_messages
			ADD COLUMN IF NOT EXISTS content_tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('english', coalesce(content, ''))) STORED;`,
		`CREATE INDEX IF NOT EXISTS idx_raw_messages_content_tsv
			ON raw_messages USING GIN (content_tsv);`,

		`ALTER TABLE IF EXISTS canonical_messages
			ADD COLUMN IF NOT EXISTS content_tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('english', coalesce(content, ''))) STORED;`,
		`CREATE INDEX IF NOT EXISTS idx_canonical_messages_content_tsv
			ON canonical_messages USING GIN (content_tsv);`,

		// (group, fingerprint, source_key) uniqueness; (group, source_key)
		// is enforced by the model's uniqueIndex tag.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_raw_group_fingerprint_source
			ON raw_messages (group_id, fingerprint, source_key);`,
		`CREATE INDEX IF NOT EXISTS idx_raw_group_fingerprint
			ON raw_messages (group_id, fingerprint);`,

		// Extraction feed claim scans.
		`CREATE INDEX IF NOT EXISTS idx_raw_unprocessed
			ON raw_messages (timestamp)
			WHERE processed = false;`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("search index migration failed: %w", err)
		}
	}
	return nil
}
