package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type CanonicalRepo interface {
	Get(dbc dbctx.Context, fingerprint string) (*types.CanonicalMessage, error)
	// Upsert writes the reconciled state for a fingerprint. The update
	// list deliberately excludes content: the representative text is
	// fixed by the earliest occurrence and disagreement is an invariant
	// violation, not something to overwrite.
	Upsert(dbc dbctx.Context, row *types.CanonicalMessage) error
	SetNeedsReview(dbc dbctx.Context, fingerprint string) error
	SearchTop(dbc dbctx.Context, query string, limit int) ([]CanonicalTopHit, error)
}

type CanonicalTopHit struct {
	Msg     *types.CanonicalMessage
	Rank    float64
	Snippet string
}

type canonicalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCanonicalRepo(db *gorm.DB, log *logger.Logger) CanonicalRepo {
	return &canonicalRepo{db: db, log: log.With("repo", "CanonicalRepo")}
}

func (r *canonicalRepo) Get(dbc dbctx.Context, fingerprint string) (*types.CanonicalMessage, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("missing fingerprint")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.CanonicalMessage
	err := txx.WithContext(dbc.Ctx).
		Where("fingerprint = ?", fingerprint).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *canonicalRepo) Upsert(dbc dbctx.Context, row *types.CanonicalMessage) error {
	if row == nil || row.Fingerprint == "" {
		return fmt.Errorf("missing canonical row")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	return txx.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_seen",
			"last_seen",
			"occurrence_total",
			"groups_seen",
			"updated_at",
		}),
	}).Create(row).Error
}

func (r *canonicalRepo) SetNeedsReview(dbc dbctx.Context, fingerprint string) error {
	if fingerprint == "" {
		return fmt.Errorf("missing fingerprint")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.CanonicalMessage{}).
		Where("fingerprint = ?", fingerprint).
		Updates(map[string]interface{}{
			"needs_review": true,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *canonicalRepo) SearchTop(dbc dbctx.Context, query string, limit int) ([]CanonicalTopHit, error) {
	if strings.TrimSpace(query) == "" {
		return []CanonicalTopHit{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}

	type row struct {
		types.CanonicalMessage
		Rank    float64 `gorm:"column:rank"`
		Snippet string  `gorm:"column:snippet"`
	}
	var rows []row
	err := txx.WithContext(dbc.Ctx).Raw(fmt.Sprintf(`
		SELECT canonical_messages.*,
		       ts_rank_cd(canonical_messages.content_tsv, plainto_tsquery('english', ?)) AS rank,
		       ts_headline('english', canonical_messages.content, plainto_tsquery('english', ?),
		                   'ShortWord=3, MaxFragments=2') AS snippet
		FROM canonical_messages
		WHERE canonical_messages.content_tsv @@ plainto_tsquery('english', ?)
		ORDER BY rank DESC, canonical_messages.last_seen DESC
		LIMIT %d;
	`, limit), query, query, query).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]CanonicalTopHit, 0, len(rows))
	for i := range rows {
		m := rows[i].CanonicalMessage
		out = append(out, CanonicalTopHit{Msg: &m, Rank: rows[i].Rank, Snippet: rows[i].Snippet})
	}
	return out, nil
}
