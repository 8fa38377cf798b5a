package chat

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos/testutil"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/normalization"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
)

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func TestGetBySourceKey(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRawMessageRepo(gdb, testutil.Logger(t))

	g := testutil.SeedGroup(t, ctx, tx, "grp-a", "Group A")
	s := testutil.SeedSender(t, ctx, tx, "Priya")
	norm, fp := normalization.NormalizeFingerprint("hello world")
	seeded := testutil.SeedRawMessage(t, ctx, tx, g.ID, s.ID, "src-1", "hello world", norm, fp, t0)

	got, err := repo.GetBySourceKey(dbc, g.ID, "src-1")
	if err != nil {
		t.Fatalf("GetBySourceKey: %v", err)
	}
	if got == nil || got.ID != seeded.ID {
		t.Fatalf("got = %+v", got)
	}

	missing, err := repo.GetBySourceKey(dbc, g.ID, "src-none")
	if err != nil {
		t.Fatalf("GetBySourceKey missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown source key")
	}
}

func TestLockCountingHeadPicksEarliest(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRawMessageRepo(gdb, testutil.Logger(t))

	g := testutil.SeedGroup(t, ctx, tx, "grp-a", "Group A")
	s := testutil.SeedSender(t, ctx, tx, "Priya")
	norm, fp := normalization.NormalizeFingerprint("repeated text")

	earliest := testutil.SeedRawMessage(t, ctx, tx, g.ID, s.ID, "src-1", "repeated text", norm, fp, t0)
	testutil.SeedRawMessage(t, ctx, tx, g.ID, s.ID, "src-2", "repeated text", norm, fp, t0.Add(time.Hour))

	head, err := repo.LockCountingHead(dbc, g.ID, fp)
	if err != nil {
		t.Fatalf("LockCountingHead: %v", err)
	}
	if head == nil || head.ID != earliest.ID {
		t.Fatalf("head = %+v, want earliest %s", head, earliest.ID)
	}

	// Without a transaction the lock is refused.
	if _, err := repo.LockCountingHead(dbctx.Context{Ctx: ctx}, g.ID, fp); err == nil {
		t.Fatal("expected error without transaction")
	}
}

func TestIncrementHeadAndPerGroupCounts(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRawMessageRepo(gdb, testutil.Logger(t))

	g := testutil.SeedGroup(t, ctx, tx, "grp-a", "Group A")
	s := testutil.SeedSender(t, ctx, tx, "Priya")
	norm, fp := normalization.NormalizeFingerprint("repeated text")
	head := testutil.SeedRawMessage(t, ctx, tx, g.ID, s.ID, "src-1", "repeated text", norm, fp, t0)

	count, err := repo.IncrementHead(dbc, head.ID, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("IncrementHead: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d", count)
	}
	count, err = repo.IncrementHead(dbc, head.ID, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("IncrementHead again: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d", count)
	}

	counts, err := repo.PerGroupCounts(dbc, fp)
	if err != nil {
		t.Fatalf("PerGroupCounts: %v", err)
	}
	if len(counts) != 1 || counts[0].Count != 3 || counts[0].GroupKey != "grp-a" {
		t.Fatalf("counts = %+v", counts)
	}

	bounds, err := repo.TimeBounds(dbc, fp)
	if err != nil {
		t.Fatalf("TimeBounds: %v", err)
	}
	if !bounds.FirstSeen.Equal(t0) {
		t.Errorf("first_seen = %v", bounds.FirstSeen)
	}
	if !bounds.LastSeen.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("last_seen = %v", bounds.LastSeen)
	}
}

func TestSearchRankingByTermFrequency(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRawMessageRepo(gdb, testutil.Logger(t))

	g := testutil.SeedGroup(t, ctx, tx, "grp-a", "Group A")
	s := testutil.SeedSender(t, ctx, tx, "Priya")

	dense := "desk for sale, great desk, sturdy desk"
	sparse := "selling a desk and some chairs"
	off := "looking for a roommate"
	for i, content := range []string{dense, sparse, off} {
		norm, fp := normalization.NormalizeFingerprint(content)
		testutil.SeedRawMessage(t, ctx, tx, g.ID, s.ID, "src-"+string(rune('a'+i)), content, norm, fp, t0.Add(time.Duration(i)*time.Minute))
	}

	hits, err := repo.Search(dbc, MessageSearchQuery{Query: "desk", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d", len(hits))
	}
	if hits[0].Msg.Content != dense {
		t.Errorf("expected denser match first, got %q", hits[0].Msg.Content)
	}
	if hits[0].Rank <= hits[1].Rank {
		t.Errorf("ranks not descending: %f vs %f", hits[0].Rank, hits[1].Rank)
	}

	// Identical query, identical order.
	again, err := repo.Search(dbc, MessageSearchQuery{Query: "desk", Limit: 10})
	if err != nil {
		t.Fatalf("Search again: %v", err)
	}
	for i := range hits {
		if hits[i].Msg.ID != again[i].Msg.ID {
			t.Fatal("ranking not deterministic")
		}
	}
}

func TestSearchEmptyQueryReturnsRecent(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRawMessageRepo(gdb, testutil.Logger(t))

	g := testutil.SeedGroup(t, ctx, tx, "grp-a", "Group A")
	s := testutil.SeedSender(t, ctx, tx, "Priya")
	for i := 0; i < 3; i++ {
		content := []string{"first", "second", "third"}[i]
		norm, fp := normalization.NormalizeFingerprint(content)
		testutil.SeedRawMessage(t, ctx, tx, g.ID, s.ID, "src-"+content, content, norm, fp, t0.Add(time.Duration(i)*time.Hour))
	}

	hits, err := repo.Search(dbc, MessageSearchQuery{Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d", len(hits))
	}
	if hits[0].Msg.Content != "third" || hits[1].Msg.Content != "second" {
		t.Errorf("order = %q, %q", hits[0].Msg.Content, hits[1].Msg.Content)
	}
	if hits[0].Rank != 0 {
		t.Errorf("empty query rank = %f", hits[0].Rank)
	}
}

func TestSearchFilters(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRawMessageRepo(gdb, testutil.Logger(t))

	ga := testutil.SeedGroup(t, ctx, tx, "grp-a", "Group A")
	gb := testutil.SeedGroup(t, ctx, tx, "grp-b", "Group B")
	priya := testutil.SeedSender(t, ctx, tx, "Priya")
	dana := testutil.SeedSender(t, ctx, tx, "Dana")

	norm, fp := normalization.NormalizeFingerprint("selling a desk")
	testutil.SeedRawMessage(t, ctx, tx, ga.ID, priya.ID, "s1", "selling a desk", norm, fp, t0)
	norm2, fp2 := normalization.NormalizeFingerprint("desk wanted")
	testutil.SeedRawMessage(t, ctx, tx, gb.ID, dana.ID, "s2", "desk wanted", norm2, fp2, t0.Add(time.Hour))

	hits, err := repo.Search(dbc, MessageSearchQuery{Query: "desk", GroupID: &ga.ID, Limit: 10})
	if err != nil {
		t.Fatalf("group filter: %v", err)
	}
	if len(hits) != 1 || hits[0].Msg.GroupID != ga.ID {
		t.Fatalf("group filter hits = %+v", hits)
	}

	hits, err = repo.Search(dbc, MessageSearchQuery{Query: "desk", Sender: "dan", Limit: 10})
	if err != nil {
		t.Fatalf("sender filter: %v", err)
	}
	if len(hits) != 1 || hits[0].Msg.SenderID != dana.ID {
		t.Fatalf("sender filter hits = %+v", hits)
	}

	after := t0.Add(30 * time.Minute)
	hits, err = repo.Search(dbc, MessageSearchQuery{Query: "desk", After: &after, Limit: 10})
	if err != nil {
		t.Fatalf("time filter: %v", err)
	}
	if len(hits) != 1 || hits[0].Msg.Content != "desk wanted" {
		t.Fatalf("time filter hits = %+v", hits)
	}
}

func TestSearchTopIncludesSnippetAndGroup(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRawMessageRepo(gdb, testutil.Logger(t))

	g := testutil.SeedGroup(t, ctx, tx, "grp-a", "CMU Housing")
	s := testutil.SeedSender(t, ctx, tx, "Priya")
	content := "Subletting my apartment near campus this summer"
	norm, fp := normalization.NormalizeFingerprint(content)
	testutil.SeedRawMessage(t, ctx, tx, g.ID, s.ID, "s1", content, norm, fp, t0)

	hits, err := repo.SearchTop(dbc, "apartment summer", 5)
	if err != nil {
		t.Fatalf("SearchTop: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	if hits[0].GroupName != "CMU Housing" {
		t.Errorf("group name = %q", hits[0].GroupName)
	}
	if hits[0].Snippet == "" {
		t.Error("expected highlighted snippet")
	}

	empty, err := repo.SearchTop(dbc, "   ", 5)
	if err != nil {
		t.Fatalf("SearchTop empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatal("blank query should return nothing")
	}
}

func TestClaimAndMarkProcessed(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRawMessageRepo(gdb, testutil.Logger(t))

	g := testutil.SeedGroup(t, ctx, tx, "grp-a", "Group A")
	s := testutil.SeedSender(t, ctx, tx, "Priya")
	norm, fp := normalization.NormalizeFingerprint("process me")
	seeded := testutil.SeedRawMessage(t, ctx, tx, g.ID, s.ID, "s1", "process me", norm, fp, t0)

	expiry := time.Now().UTC()
	claimed, err := repo.ClaimUnprocessed(dbc, expiry, 10)
	if err != nil {
		t.Fatalf("ClaimUnprocessed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != seeded.ID {
		t.Fatalf("claimed = %+v", claimed)
	}

	// Still inside the lease window.
	held, err := repo.ClaimUnprocessed(dbc, expiry, 10)
	if err != nil {
		t.Fatalf("ClaimUnprocessed held: %v", err)
	}
	if len(held) != 0 {
		t.Fatalf("claim should hold, got %d", len(held))
	}

	if err := repo.MarkProcessed(dbc, seeded.ID, datatypes.JSON([]byte(`{"category":"other"}`))); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	got, err := repo.GetBySourceKey(dbc, g.ID, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.Processed || got.ClaimedAt != nil {
		t.Fatalf("processed=%v claimed_at=%v", got.Processed, got.ClaimedAt)
	}
}
