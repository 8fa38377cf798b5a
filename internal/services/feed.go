package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos"
	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	apperr "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/pkg/errors"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

// ExtractionFeed hands unprocessed messages to the extractor and records
// results. Claims carry a lease: a claimed message that is never marked
// processed becomes claimable again once the lease lapses.
type ExtractionFeed interface {
	NextBatch(ctx context.Context, limit int) ([]*types.RawMessage, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, extraction *Extraction) error
	ProcessUnprocessed(ctx context.Context, batchSize int) (*ProcessReport, error)
}

type ProcessReport struct {
	Claimed    int
	Processed  int
	Items      int
	Apartments int
	Failed     int
	Elapsed    time.Duration
}

type extractionFeed struct {
	db         *gorm.DB
	raw        repos.RawMessageRepo
	items      repos.ItemForSaleRepo
	apartments repos.ApartmentRepo
	extractor  Extractor
	lease      time.Duration
	log        *logger.Logger
}

func NewExtractionFeed(
	db *gorm.DB,
	raw repos.RawMessageRepo,
	items repos.ItemForSaleRepo,
	apartments repos.ApartmentRepo,
	extractor Extractor,
	lease time.Duration,
	log *logger.Logger,
) ExtractionFeed {
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	return &extractionFeed{
		db:         db,
		raw:        raw,
		items:      items,
		apartments: apartments,
		extractor:  extractor,
		lease:      lease,
		log:        log.With("service", "ExtractionFeed"),
	}
}

func (s *extractionFeed) NextBatch(ctx context.Context, limit int) ([]*types.RawMessage, error) {
	expiry := time.Now().UTC().Add(-s.lease)
	return s.raw.ClaimUnprocessed(dbctx.Context{Ctx: ctx}, expiry, limit)
}

// MarkProcessed writes the extraction outcome atomically: the listing row
// (when one was extracted) and the processed flag land in one transaction.
func (s *extractionFeed) MarkProcessed(ctx context.Context, id uuid.UUID, extraction *Extraction) error {
	if id == uuid.Nil {
		return apperr.Validationf("missing raw message id")
	}

	var entities datatypes.JSON
	if extraction != nil && len(extraction.Entities) > 0 {
		payload := map[string]any{
			"category": extraction.Category,
			"fields":   extraction.Entities,
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		entities = datatypes.JSON(raw)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if extraction != nil && extraction.Item != nil {
			if err := s.items.Upsert(dbc, extraction.Item); err != nil {
				return err
			}
		}
		if extraction != nil && extraction.Apartment != nil {
			if err := s.apartments.Upsert(dbc, extraction.Apartment); err != nil {
				return err
			}
		}
		return s.raw.MarkProcessed(dbc, id, entities)
	})
}

// ProcessUnprocessed drains the feed until no claimable messages remain.
// A message whose extraction fails stays claimed and retries after the
// lease lapses rather than wedging the batch.
func (s *extractionFeed) ProcessUnprocessed(ctx context.Context, batchSize int) (*ProcessReport, error) {
	start := time.Now()
	report := &ProcessReport{}

	for {
		batch, err := s.NextBatch(ctx, batchSize)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}
		report.Claimed += len(batch)

		for _, msg := range batch {
			extraction, err := s.extractor.Extract(ctx, msg)
			if err != nil {
				report.Failed++
				s.log.Error("extraction failed", "raw_message_id", msg.ID, "error", err)
				continue
			}
			if err := s.MarkProcessed(ctx, msg.ID, extraction); err != nil {
				report.Failed++
				s.log.Error("failed to record extraction", "raw_message_id", msg.ID, "error", err)
				continue
			}
			report.Processed++
			if extraction.Item != nil {
				report.Items++
			}
			if extraction.Apartment != nil {
				report.Apartments++
			}
		}
	}

	report.Elapsed = time.Since(start)
	s.log.Info("extraction pass complete",
		"claimed", report.Claimed,
		"processed", report.Processed,
		"items", report.Items,
		"apartments", report.Apartments,
		"failed", report.Failed)
	return report, nil
}
