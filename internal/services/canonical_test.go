package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos/testutil"
	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/normalization"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
)

func TestBackfillMissingOnly(t *testing.T) {
	gdb := testutil.DB(t)
	testutil.Reset(t, gdb)
	log := testutil.Logger(t)
	ctx := context.Background()

	raw := repos.NewRawMessageRepo(gdb, log)
	canRepo := repos.NewCanonicalRepo(gdb, log)
	svc := NewCanonicalService(gdb, raw, canRepo, log)

	// Seed raw rows directly, bypassing ingest, so no canonical rows exist.
	g := testutil.SeedGroup(t, ctx, gdb, "grp-a", "Group A")
	g2 := testutil.SeedGroup(t, ctx, gdb, "grp-b", "Group B")
	sender := testutil.SeedSender(t, ctx, gdb, "Priya")

	norm, fp := normalization.NormalizeFingerprint("selling textbooks")
	testutil.SeedRawMessage(t, ctx, gdb, g.ID, sender.ID, "s1", "selling textbooks", norm, fp, baseTime)
	testutil.SeedRawMessage(t, ctx, gdb, g2.ID, sender.ID, "s2", "selling textbooks", norm, fp, baseTime.Add(time.Hour))

	norm2, fp2 := normalization.NormalizeFingerprint("anyone going downtown")
	testutil.SeedRawMessage(t, ctx, gdb, g.ID, sender.ID, "s3", "anyone going downtown", norm2, fp2, baseTime)

	report, err := svc.Backfill(ctx, BackfillOptions{MissingOnly: true, BatchSize: 10, Concurrency: 2})
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if report.Scanned != 2 {
		t.Fatalf("scanned = %d", report.Scanned)
	}

	can, err := svc.Get(ctx, fp)
	if err != nil || can == nil {
		t.Fatalf("canonical for fp: %v, %v", can, err)
	}
	if can.OccurrenceTotal != 2 {
		t.Errorf("occurrence_total = %d", can.OccurrenceTotal)
	}

	// A second missing-only pass finds nothing to do.
	report2, err := svc.Backfill(ctx, BackfillOptions{MissingOnly: true, BatchSize: 10})
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if report2.Scanned != 0 {
		t.Errorf("second pass scanned = %d", report2.Scanned)
	}
}

func TestBackfillFullSweepConverges(t *testing.T) {
	gdb := testutil.DB(t)
	testutil.Reset(t, gdb)
	log := testutil.Logger(t)
	ctx := context.Background()

	raw := repos.NewRawMessageRepo(gdb, log)
	canRepo := repos.NewCanonicalRepo(gdb, log)
	svc := NewCanonicalService(gdb, raw, canRepo, log)

	g := testutil.SeedGroup(t, ctx, gdb, "grp-a", "Group A")
	sender := testutil.SeedSender(t, ctx, gdb, "Priya")
	norm, fp := normalization.NormalizeFingerprint("selling textbooks")
	testutil.SeedRawMessage(t, ctx, gdb, g.ID, sender.ID, "s1", "selling textbooks", norm, fp, baseTime)

	first, err := svc.Backfill(ctx, BackfillOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	canA, _ := svc.Get(ctx, fp)

	second, err := svc.Backfill(ctx, BackfillOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("backfill again: %v", err)
	}
	canB, _ := svc.Get(ctx, fp)

	if first.Scanned != second.Scanned {
		t.Errorf("scanned %d then %d", first.Scanned, second.Scanned)
	}
	if canA.OccurrenceTotal != canB.OccurrenceTotal || !canA.FirstSeen.Equal(canB.FirstSeen) {
		t.Error("repeated backfill changed canonical state")
	}
}

func TestReconcileFlagsContentDivergence(t *testing.T) {
	gdb := testutil.DB(t)
	testutil.Reset(t, gdb)
	log := testutil.Logger(t)
	ctx := context.Background()

	raw := repos.NewRawMessageRepo(gdb, log)
	canRepo := repos.NewCanonicalRepo(gdb, log)
	svc := NewCanonicalService(gdb, raw, canRepo, log)

	g := testutil.SeedGroup(t, ctx, gdb, "grp-a", "Group A")
	sender := testutil.SeedSender(t, ctx, gdb, "Priya")
	norm, fp := normalization.NormalizeFingerprint("selling textbooks")
	testutil.SeedRawMessage(t, ctx, gdb, g.ID, sender.ID, "s1", "selling textbooks", norm, fp, baseTime)

	// Pre-existing canonical row that disagrees with the earliest raw text.
	dbc := dbctx.Context{Ctx: ctx}
	if err := canRepo.Upsert(dbc, &types.CanonicalMessage{
		Fingerprint:     fp,
		Content:         "something else entirely",
		FirstSeen:       baseTime,
		LastSeen:        baseTime,
		OccurrenceTotal: 1,
		GroupsSeen:      datatypes.JSON([]byte(`["grp-a"]`)),
	}); err != nil {
		t.Fatalf("seed canonical: %v", err)
	}

	row, err := svc.Reconcile(dbc, fp)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !row.NeedsReview {
		t.Fatal("divergent content should flag needs_review")
	}

	stored, _ := svc.Get(ctx, fp)
	if !stored.NeedsReview {
		t.Error("needs_review not persisted")
	}
	if stored.Content != "something else entirely" {
		t.Errorf("content must never be auto-corrected, got %q", stored.Content)
	}
}

func TestReconcileVariantEarliestDoesNotFlag(t *testing.T) {
	gdb := testutil.DB(t)
	testutil.Reset(t, gdb)
	log := testutil.Logger(t)
	ctx := context.Background()

	raw := repos.NewRawMessageRepo(gdb, log)
	canRepo := repos.NewCanonicalRepo(gdb, log)
	svc := NewCanonicalService(gdb, raw, canRepo, log)

	g := testutil.SeedGroup(t, ctx, gdb, "grp-a", "Group A")
	sender := testutil.SeedSender(t, ctx, gdb, "Priya")

	norm, fp := normalization.NormalizeFingerprint("Selling a desk $20")
	testutil.SeedRawMessage(t, ctx, gdb, g.ID, sender.ID, "s1", "Selling a desk $20", norm, fp, baseTime.Add(time.Hour))

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := svc.Reconcile(dbc, fp); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	// A late-arriving variant with an earlier timestamp becomes the new
	// earliest occurrence. Same fingerprint, different raw casing; that
	// is normal history, not corruption.
	norm2, fp2 := normalization.NormalizeFingerprint("  selling   a DESK, $25 ")
	if fp2 != fp {
		t.Fatalf("variants should share a fingerprint")
	}
	testutil.SeedRawMessage(t, ctx, gdb, g.ID, sender.ID, "s2", "  selling   a DESK, $25 ", norm2, fp2, baseTime)

	row, err := svc.Reconcile(dbc, fp)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if row.NeedsReview {
		t.Fatal("normalized-equal variant must not flag needs_review")
	}

	stored, _ := svc.Get(ctx, fp)
	if stored.NeedsReview {
		t.Error("needs_review persisted for a benign variant")
	}
	if stored.Content != "Selling a desk $20" {
		t.Errorf("representative content changed to %q", stored.Content)
	}
}

func TestReconcileNoOccurrences(t *testing.T) {
	gdb := testutil.DB(t)
	testutil.Reset(t, gdb)
	log := testutil.Logger(t)

	raw := repos.NewRawMessageRepo(gdb, log)
	canRepo := repos.NewCanonicalRepo(gdb, log)
	svc := NewCanonicalService(gdb, raw, canRepo, log)

	row, err := svc.Reconcile(dbctx.Context{Ctx: context.Background()}, "deadbeef")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if row != nil {
		t.Fatal("no occurrences should yield no canonical row")
	}
}
