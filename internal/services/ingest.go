package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos"
	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/ingestion"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/normalization"
	apperr "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/pkg/errors"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

// IngestTuple is one message as delivered by a source. SourceKey is the
// source's stable identity for the message; re-delivering the same key to
// the same group is a no-op rather than a count bump.
type IngestTuple struct {
	GroupKey   string
	GroupName  string
	University string
	Category   string

	SenderName  string
	SenderPhone string

	Text      string
	Timestamp time.Time
	SourceKey string
	Links     []string
}

type IngestResult struct {
	Msg     *types.RawMessage
	Created bool
	// Count is the per-group occurrence count for the message's
	// fingerprint after this ingest.
	Count int64
}

type ExportOptions struct {
	// GroupKey overrides registry resolution of the export's chat name.
	GroupKey string
	// Since drops messages at or before the given instant.
	Since *time.Time
}

type ExportReport struct {
	GroupKey   string
	GroupName  string
	Parsed     int
	Created    int
	Duplicates int
	Conflicts  int
	Skipped    int
	Failed     int
	Elapsed    time.Duration
}

type IngestService interface {
	Ingest(ctx context.Context, tuple IngestTuple) (*IngestResult, error)
	IngestExport(ctx context.Context, r io.Reader, opts ExportOptions) (*ExportReport, error)
}

type ingestService struct {
	db        *gorm.DB
	groups    repos.GroupRepo
	senders   repos.SenderRepo
	raw       repos.RawMessageRepo
	canonical CanonicalService
	registry  *ingestion.GroupRegistry
	log       *logger.Logger
}

func NewIngestService(
	db *gorm.DB,
	groups repos.GroupRepo,
	senders repos.SenderRepo,
	raw repos.RawMessageRepo,
	canonical CanonicalService,
	registry *ingestion.GroupRegistry,
	log *logger.Logger,
) IngestService {
	return &ingestService{
		db:        db,
		groups:    groups,
		senders:   senders,
		raw:       raw,
		canonical: canonical,
		registry:  registry,
		log:       log.With("service", "IngestService"),
	}
}

func (s *ingestService) Ingest(ctx context.Context, tuple IngestTuple) (*IngestResult, error) {
	if err := validateTuple(tuple); err != nil {
		return nil, err
	}

	normalized, fp := normalization.NormalizeFingerprint(tuple.Text)

	var out IngestResult
	// Serialization failures, deadlocks and lost races to a unique index
	// between competing ingest transactions are safe to replay; everything
	// else surfaces as-is.
	err := apperr.Retry(3, 50*time.Millisecond, func() error {
		txErr := s.runIngest(ctx, tuple, normalized, fp, &out)
		if isRetryableIngest(txErr) {
			return apperr.Transient(txErr)
		}
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ingestService) runIngest(ctx context.Context, tuple IngestTuple, normalized, fp string, out *IngestResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		group, err := s.resolveGroup(dbc, tuple)
		if err != nil {
			return err
		}
		sender, err := s.resolveSender(dbc, tuple)
		if err != nil {
			return err
		}

		existing, err := s.raw.GetBySourceKey(dbc, group.ID, tuple.SourceKey)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Fingerprint != fp {
				return &apperr.ConflictError{
					GroupKey:    group.GroupKey,
					SourceKey:   tuple.SourceKey,
					Fingerprint: fp,
					Existing:    existing.Fingerprint,
				}
			}
			*out = IngestResult{Msg: existing, Created: false, Count: existing.OccurrenceCount}
			return nil
		}

		// The counting head is the earliest row for (group, fingerprint).
		// Locking it serializes concurrent ingests of the same content.
		head, err := s.raw.LockCountingHead(dbc, group.ID, fp)
		if err != nil {
			return err
		}

		count := int64(1)
		if head != nil {
			count, err = s.raw.IncrementHead(dbc, head.ID, tuple.Timestamp)
			if err != nil {
				return err
			}
		}

		row := &types.RawMessage{
			ID:              uuid.New(),
			GroupID:         group.ID,
			SenderID:        sender.ID,
			SourceKey:       tuple.SourceKey,
			Content:         tuple.Text,
			NormalizedText:  normalized,
			Fingerprint:     fp,
			Timestamp:       tuple.Timestamp,
			FirstSeen:       tuple.Timestamp,
			LastSeen:        tuple.Timestamp,
			OccurrenceCount: count,
			Links:           marshalLinks(tuple.Links),
		}
		if _, err := s.raw.Create(dbc, row); err != nil {
			return err
		}

		if _, err := s.canonical.Reconcile(dbc, fp); err != nil {
			return err
		}
		if err := s.groups.TouchIngested(dbc, group.ID, time.Now().UTC()); err != nil {
			return err
		}

		*out = IngestResult{Msg: row, Created: true, Count: count}
		return nil
	})
}

// Postgres codes 40001 (serialization_failure), 40P01 (deadlock_detected)
// and 23505 (unique_violation). Two deliveries of the same source key can
// both pass the idempotence read before either commits; the loser's insert
// then trips the unique index, and a replay finds the winner's row.
func isRetryableIngest(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

func (s *ingestService) IngestExport(ctx context.Context, r io.Reader, opts ExportOptions) (*ExportReport, error) {
	start := time.Now()

	parsed, err := ingestion.ParseExport(r, opts.Since)
	if err != nil {
		return nil, apperr.Validationf("parse export: %v", err)
	}

	spec := s.registry.Resolve(parsed.GroupName)
	if opts.GroupKey != "" {
		spec.Key = opts.GroupKey
	}

	report := &ExportReport{
		GroupKey:  spec.Key,
		GroupName: spec.Name,
		Parsed:    len(parsed.Messages),
		Skipped:   parsed.SkippedNoTimestamp,
	}

	for _, m := range parsed.Messages {
		res, err := s.Ingest(ctx, IngestTuple{
			GroupKey:    spec.Key,
			GroupName:   spec.Name,
			University:  spec.University,
			Category:    spec.Category,
			SenderName:  m.SenderName,
			SenderPhone: m.SenderPhone,
			Text:        m.Body,
			Timestamp:   m.Timestamp,
			SourceKey:   m.SourceKey,
			Links:       m.Links,
		})
		switch {
		case err == nil && res.Created:
			report.Created++
		case err == nil:
			report.Duplicates++
		case errors.Is(err, apperr.ErrConflict):
			report.Conflicts++
			s.log.Warn("conflicting source key in export",
				"group_key", spec.Key, "source_key", m.SourceKey)
		default:
			report.Failed++
			s.log.Error("failed to ingest export message",
				"group_key", spec.Key, "source_key", m.SourceKey, "error", err)
		}
	}

	report.Elapsed = time.Since(start)
	s.log.Info("export ingested",
		"group_key", report.GroupKey,
		"parsed", report.Parsed,
		"created", report.Created,
		"duplicates", report.Duplicates,
		"conflicts", report.Conflicts,
		"failed", report.Failed)
	return report, nil
}

func (s *ingestService) resolveGroup(dbc dbctx.Context, tuple IngestTuple) (*types.Group, error) {
	group, err := s.groups.GetByKey(dbc, tuple.GroupKey)
	if err != nil {
		return nil, err
	}
	if group != nil {
		return group, nil
	}

	name := tuple.GroupName
	category := tuple.Category
	university := tuple.University
	if spec, ok := s.registry.ByKey(tuple.GroupKey); ok {
		if name == "" {
			name = spec.Name
		}
		if category == "" {
			category = spec.Category
		}
		if university == "" {
			university = spec.University
		}
	}
	if name == "" {
		name = tuple.GroupKey
	}
	if category == "" {
		category = "general"
	}
	return s.groups.Create(dbc, &types.Group{
		ID:         uuid.New(),
		GroupKey:   tuple.GroupKey,
		Name:       name,
		University: university,
		Category:   category,
	})
}

func (s *ingestService) resolveSender(dbc dbctx.Context, tuple IngestTuple) (*types.Sender, error) {
	var sender *types.Sender
	var err error
	if tuple.SenderPhone != "" {
		sender, err = s.senders.GetByPhone(dbc, tuple.SenderPhone)
	} else {
		sender, err = s.senders.GetByDisplayName(dbc, tuple.SenderName)
	}
	if err != nil {
		return nil, err
	}
	if sender != nil {
		if err := s.senders.TouchSeen(dbc, sender, tuple.Timestamp); err != nil {
			return nil, err
		}
		return sender, nil
	}

	name := tuple.SenderName
	if name == "" {
		name = tuple.SenderPhone
	}
	row := &types.Sender{
		ID:          uuid.New(),
		SenderKey:   senderKey(tuple),
		DisplayName: name,
		FirstSeen:   tuple.Timestamp,
		LastSeen:    tuple.Timestamp,
	}
	if tuple.SenderPhone != "" {
		phone := tuple.SenderPhone
		row.Phone = &phone
	}
	return s.senders.Create(dbc, row)
}

func senderKey(tuple IngestTuple) string {
	if tuple.SenderPhone != "" {
		return "phone::" + tuple.SenderPhone
	}
	return "export_user::" + ingestion.Slugify(tuple.SenderName)
}

func validateTuple(tuple IngestTuple) error {
	if strings.TrimSpace(tuple.GroupKey) == "" {
		return apperr.Validationf("missing group key")
	}
	if strings.TrimSpace(tuple.SourceKey) == "" {
		return apperr.Validationf("missing source key")
	}
	if tuple.Timestamp.IsZero() {
		return apperr.Validationf("missing timestamp")
	}
	if tuple.SenderName == "" && tuple.SenderPhone == "" {
		return apperr.Validationf("missing sender")
	}
	return nil
}

func marshalLinks(links []string) datatypes.JSON {
	if len(links) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	raw, err := json.Marshal(links)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
