package chat

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos/testutil"
	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/normalization"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
)

func seedCanonical(t *testing.T, dbc dbctx.Context, repo CanonicalRepo, content string, total int64) *types.CanonicalMessage {
	t.Helper()
	fp := normalization.Fingerprint(content)
	row := &types.CanonicalMessage{
		Fingerprint:     fp,
		Content:         content,
		FirstSeen:       t0,
		LastSeen:        t0.Add(time.Hour),
		OccurrenceTotal: total,
		GroupsSeen:      datatypes.JSON([]byte(`["grp-a"]`)),
	}
	if err := repo.Upsert(dbc, row); err != nil {
		t.Fatalf("seed canonical: %v", err)
	}
	return row
}

func TestCanonicalUpsertPreservesContent(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewCanonicalRepo(gdb, testutil.Logger(t))

	row := seedCanonical(t, dbc, repo, "original representative text", 1)

	update := &types.CanonicalMessage{
		Fingerprint:     row.Fingerprint,
		Content:         "attacker controlled rewrite",
		FirstSeen:       row.FirstSeen,
		LastSeen:        row.LastSeen.Add(time.Hour),
		OccurrenceTotal: 5,
		GroupsSeen:      datatypes.JSON([]byte(`["grp-a","grp-b"]`)),
	}
	if err := repo.Upsert(dbc, update); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.Get(dbc, row.Fingerprint)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "original representative text" {
		t.Errorf("content overwritten: %q", got.Content)
	}
	if got.OccurrenceTotal != 5 {
		t.Errorf("occurrence_total not updated: %d", got.OccurrenceTotal)
	}
}

func TestCanonicalSetNeedsReview(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewCanonicalRepo(gdb, testutil.Logger(t))

	row := seedCanonical(t, dbc, repo, "review me", 1)
	if err := repo.SetNeedsReview(dbc, row.Fingerprint); err != nil {
		t.Fatalf("SetNeedsReview: %v", err)
	}
	got, _ := repo.Get(dbc, row.Fingerprint)
	if !got.NeedsReview {
		t.Fatal("needs_review not set")
	}
}

func TestCanonicalSearchTop(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewCanonicalRepo(gdb, testutil.Logger(t))

	seedCanonical(t, dbc, repo, "Subletting a furnished apartment near campus", 3)
	seedCanonical(t, dbc, repo, "lost my water bottle at the gym", 1)

	hits, err := repo.SearchTop(dbc, "furnished apartment", 5)
	if err != nil {
		t.Fatalf("SearchTop: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	if hits[0].Msg.OccurrenceTotal != 3 {
		t.Errorf("hit = %+v", hits[0].Msg)
	}
	if hits[0].Rank <= 0 || hits[0].Snippet == "" {
		t.Errorf("rank=%f snippet=%q", hits[0].Rank, hits[0].Snippet)
	}

	none, err := repo.SearchTop(dbc, "", 5)
	if err != nil {
		t.Fatalf("SearchTop empty: %v", err)
	}
	if len(none) != 0 {
		t.Fatal("blank query should return nothing")
	}
}
