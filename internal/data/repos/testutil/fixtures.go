package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
)

func SeedGroup(tb testing.TB, ctx context.Context, tx *gorm.DB, groupKey, name string) *types.Group {
	tb.Helper()
	g := &types.Group{
		ID:       uuid.New(),
		GroupKey: groupKey,
		Name:     name,
		Category: "general",
	}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed group: %v", err)
	}
	return g
}

func SeedSender(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Sender {
	tb.Helper()
	s := &types.Sender{
		ID:          uuid.New(),
		SenderKey:   "export_user::" + name,
		DisplayName: name,
		FirstSeen:   time.Now().UTC(),
		LastSeen:    time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed sender: %v", err)
	}
	return s
}

func SeedRawMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, groupID, senderID uuid.UUID, sourceKey, content, normalized, fingerprint string, ts time.Time) *types.RawMessage {
	tb.Helper()
	m := &types.RawMessage{
		ID:              uuid.New(),
		GroupID:         groupID,
		SenderID:        senderID,
		SourceKey:       sourceKey,
		Content:         content,
		NormalizedText:  normalized,
		Fingerprint:     fingerprint,
		Timestamp:       ts,
		FirstSeen:       ts,
		LastSeen:        ts,
		OccurrenceCount: 1,
		Links:           datatypes.JSON([]byte("[]")),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed raw message: %v", err)
	}
	return m
}
