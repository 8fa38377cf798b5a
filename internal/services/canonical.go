package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos"
	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/normalization"
	apperr "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/pkg/errors"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

// CanonicalService maintains the cross-group record for each fingerprint.
// Reconcile is a full recompute from raw rows, so replaying it any number
// of times converges on the same state.
type CanonicalService interface {
	Reconcile(dbc dbctx.Context, fingerprint string) (*types.CanonicalMessage, error)
	Backfill(ctx context.Context, opts BackfillOptions) (*BackfillReport, error)
	Get(ctx context.Context, fingerprint string) (*types.CanonicalMessage, error)
}

type BackfillOptions struct {
	BatchSize   int
	Concurrency int
	// MissingOnly restricts the pass to fingerprints without a canonical
	// row. The default sweeps every fingerprint.
	MissingOnly bool
}

type BackfillReport struct {
	Scanned    int
	Reconciled int
	Violations int
	Elapsed    time.Duration
}

type canonicalService struct {
	db        *gorm.DB
	raw       repos.RawMessageRepo
	canonical repos.CanonicalRepo
	log       *logger.Logger
}

func NewCanonicalService(db *gorm.DB, raw repos.RawMessageRepo, canonical repos.CanonicalRepo, log *logger.Logger) CanonicalService {
	return &canonicalService{
		db:        db,
		raw:       raw,
		canonical: canonical,
		log:       log.With("service", "CanonicalService"),
	}
}

func (s *canonicalService) Get(ctx context.Context, fingerprint string) (*types.CanonicalMessage, error) {
	return s.canonical.Get(dbctx.Context{Ctx: ctx}, fingerprint)
}

func (s *canonicalService) Reconcile(dbc dbctx.Context, fingerprint string) (*types.CanonicalMessage, error) {
	if fingerprint == "" {
		return nil, apperr.Validationf("missing fingerprint")
	}

	counts, err := s.raw.PerGroupCounts(dbc, fingerprint)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		// No occurrences, nothing to record.
		return nil, nil
	}

	bounds, err := s.raw.TimeBounds(dbc, fingerprint)
	if err != nil {
		return nil, err
	}
	earliest, err := s.raw.EarliestOccurrence(dbc, fingerprint)
	if err != nil {
		return nil, err
	}
	existing, err := s.canonical.Get(dbc, fingerprint)
	if err != nil {
		return nil, err
	}

	var total int64
	groupKeys := make([]string, 0, len(counts))
	for _, c := range counts {
		total += c.Count
		groupKeys = append(groupKeys, c.GroupKey)
	}
	sort.Strings(groupKeys)
	groupsJSON, err := json.Marshal(groupKeys)
	if err != nil {
		return nil, err
	}

	row := &types.CanonicalMessage{
		Fingerprint:     fingerprint,
		Content:         earliest.Content,
		FirstSeen:       bounds.FirstSeen,
		LastSeen:        bounds.LastSeen,
		OccurrenceTotal: total,
		GroupsSeen:      datatypes.JSON(groupsJSON),
	}
	if existing != nil {
		row.NeedsReview = existing.NeedsReview
		row.CreatedAt = existing.CreatedAt
	}
	if err := s.canonical.Upsert(dbc, row); err != nil {
		return nil, err
	}

	// The representative text is pinned by the earliest occurrence. Raw
	// variants under one fingerprint legitimately differ in case and
	// spacing, so compare normalized forms; a disagreement there means
	// raw history changed underneath us, and it is flagged for an
	// operator instead of rewriting the record.
	if existing != nil && normalization.Normalize(existing.Content) != earliest.NormalizedText {
		viol := &apperr.InvariantViolationError{
			Fingerprint: fingerprint,
			Detail:      "representative content diverged from earliest occurrence",
		}
		s.log.Error("canonical invariant violation",
			"fingerprint", fingerprint,
			"detail", viol.Detail)
		if err := s.canonical.SetNeedsReview(dbc, fingerprint); err != nil {
			return nil, err
		}
		row.NeedsReview = true
		row.Content = existing.Content
	}

	return row, nil
}

// Backfill sweeps fingerprints and reconciles each in its own short
// transaction. Workers share nothing; reconciling the same fingerprint
// twice is harmless because Reconcile is a full recompute.
func (s *canonicalService) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	start := time.Now()
	report := &BackfillReport{}
	var violations atomic.Int64

	process := func(fps []string) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for _, fp := range fps {
			fp := fp
			g.Go(func() error {
				return s.db.WithContext(gctx).Transaction(func(tx *gorm.DB) error {
					row, err := s.Reconcile(dbctx.Context{Ctx: gctx, Tx: tx}, fp)
					if err != nil {
						return err
					}
					if row != nil && row.NeedsReview {
						violations.Add(1)
					}
					return nil
				})
			})
		}
		return g.Wait()
	}

	if opts.MissingOnly {
		for {
			fps, err := s.raw.FingerprintsMissingCanonical(dbctx.Context{Ctx: ctx}, opts.BatchSize)
			if err != nil {
				return report, err
			}
			if len(fps) == 0 {
				break
			}
			report.Scanned += len(fps)
			if err := process(fps); err != nil {
				return report, err
			}
			report.Reconciled += len(fps)
		}
		report.Violations = int(violations.Load())
		report.Elapsed = time.Since(start)
		return report, nil
	}

	after := ""
	for {
		fps, err := s.raw.FingerprintsAfter(dbctx.Context{Ctx: ctx}, after, opts.BatchSize)
		if err != nil {
			return report, err
		}
		if len(fps) == 0 {
			break
		}
		report.Scanned += len(fps)
		if err := process(fps); err != nil {
			return report, err
		}
		report.Reconciled += len(fps)
		after = fps[len(fps)-1]
	}

	report.Violations = int(violations.Load())
	report.Elapsed = time.Since(start)
	s.log.Info("backfill complete",
		"scanned", report.Scanned,
		"violations", report.Violations,
		"elapsed", report.Elapsed.String())
	return report, nil
}
