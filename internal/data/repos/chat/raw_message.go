package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type RawMessageRepo interface {
	GetBySourceKey(dbc dbctx.Context, groupID uuid.UUID, sourceKey string) (*types.RawMessage, error)
	Create(dbc dbctx.Context, row *types.RawMessage) (*types.RawMessage, error)

	// LockCountingHead locks the earliest row of (group, fingerprint),
	// serializing concurrent increments of the same key. Requires an
	// open transaction on dbc.
	LockCountingHead(dbc dbctx.Context, groupID uuid.UUID, fingerprint string) (*types.RawMessage, error)
	// IncrementHead bumps the counting head atomically and returns the
	// new per-group occurrence count.
	IncrementHead(dbc dbctx.Context, headID uuid.UUID, seenAt time.Time) (int64, error)

	PerGroupCounts(dbc dbctx.Context, fingerprint string) ([]GroupCount, error)
	EarliestOccurrence(dbc dbctx.Context, fingerprint string) (*types.RawMessage, error)
	TimeBounds(dbc dbctx.Context, fingerprint string) (*FingerprintTimeBounds, error)

	FingerprintsMissingCanonical(dbc dbctx.Context, limit int) ([]string, error)
	FingerprintsAfter(dbc dbctx.Context, after string, limit int) ([]string, error)

	Search(dbc dbctx.Context, q MessageSearchQuery) ([]MessageHit, error)
	SearchTop(dbc dbctx.Context, query string, limit int) ([]MessageTopHit, error)

	ClaimUnprocessed(dbc dbctx.Context, leaseExpiry time.Time, limit int) ([]*types.RawMessage, error)
	MarkProcessed(dbc dbctx.Context, id uuid.UUID, entities datatypes.JSON) error
}

type GroupCount struct {
	GroupID  uuid.UUID `gorm:"column:group_id"`
	GroupKey string    `gorm:"column:group_key"`
	Count    int64     `gorm:"column:count"`
}

type FingerprintTimeBounds struct {
	FirstSeen time.Time `gorm:"column:first_seen"`
	LastSeen  time.Time `gorm:"column:last_seen"`
}

type MessageSearchQuery struct {
	Query   string
	GroupID *uuid.UUID
	Sender  string
	After   *time.Time
	Before  *time.Time
	Limit   int
}

type MessageHit struct {
	Msg  *types.RawMessage
	Rank float64
}

type MessageTopHit struct {
	Msg       *types.RawMessage
	GroupName string
	Rank      float64
	Snippet   string
}

type rawMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawMessageRepo(db *gorm.DB, log *logger.Logger) RawMessageRepo {
	return &rawMessageRepo{db: db, log: log.With("repo", "RawMessageRepo")}
}

func (r *rawMessageRepo) GetBySourceKey(dbc dbctx.Context, groupID uuid.UUID, sourceKey string) (*types.RawMessage, error) {
	if groupID == uuid.Nil {
		return nil, fmt.Errorf("missing group_id")
	}
	if sourceKey == "" {
		return nil, fmt.Errorf("missing source_key")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.RawMessage
	err := txx.WithContext(dbc.Ctx).
		Where("group_id = ? AND source_key = ?", groupID, sourceKey).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *rawMessageRepo) Create(dbc dbctx.Context, row *types.RawMessage) (*types.RawMessage, error) {
	if row == nil {
		return nil, fmt.Errorf("missing raw message row")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *rawMessageRepo) LockCountingHead(dbc dbctx.Context, groupID uuid.UUID, fingerprint string) (*types.RawMessage, error) {
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockCountingHead requires a transaction")
	}
	if groupID == uuid.Nil || fingerprint == "" {
		return nil, fmt.Errorf("missing group_id or fingerprint")
	}
	// The row lock alone cannot serialize two first ingests of the same
	// fingerprint: with no head row yet, both would see nil and insert.
	// The advisory lock covers that window and releases on commit.
	if err := dbc.Tx.WithContext(dbc.Ctx).Exec(
		`SELECT pg_advisory_xact_lock(hashtext(?));`,
		groupID.String()+":"+fingerprint,
	).Error; err != nil {
		return nil, err
	}
	var out types.RawMessage
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("group_id = ? AND fingerprint = ?", groupID, fingerprint).
		Order("first_seen ASC, created_at ASC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *rawMessageRepo) IncrementHead(dbc dbctx.Context, headID uuid.UUID, seenAt time.Time) (int64, error) {
	if headID == uuid.Nil {
		return 0, fmt.Errorf("missing head id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	err := txx.WithContext(dbc.Ctx).Raw(`
		UPDATE raw_messages
		SET occurrence_count = occurrence_count + 1,
		    last_seen = GREATEST(last_seen, ?),
		    updated_at = now()
		WHERE id = ?
		RETURNING occurrence_count;
	`, seenAt, headID).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *rawMessageRepo) PerGroupCounts(dbc dbctx.Context, fingerprint string) ([]GroupCount, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("missing fingerprint")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []GroupCount
	err := txx.WithContext(dbc.Ctx).Raw(`
		SELECT r.group_id AS group_id, g.group_key AS group_key, MAX(r.occurrence_count) AS count
		FROM raw_messages r
		JOIN groups g ON g.id = r.group_id
		WHERE r.fingerprint = ?
		GROUP BY r.group_id, g.group_key;
	`, fingerprint).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rawMessageRepo) EarliestOccurrence(dbc dbctx.Context, fingerprint string) (*types.RawMessage, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("missing fingerprint")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.RawMessage
	err := txx.WithContext(dbc.Ctx).
		Where("fingerprint = ?", fingerprint).
		Order("timestamp ASC, created_at ASC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *rawMessageRepo) TimeBounds(dbc dbctx.Context, fingerprint string) (*FingerprintTimeBounds, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("missing fingerprint")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var exists int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.RawMessage{}).
		Where("fingerprint = ?", fingerprint).
		Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, nil
	}
	var out FingerprintTimeBounds
	err := txx.WithContext(dbc.Ctx).Raw(`
		SELECT MIN(timestamp) AS first_seen, MAX(last_seen) AS last_seen
		FROM raw_messages
		WHERE fingerprint = ?;
	`, fingerprint).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *rawMessageRepo) FingerprintsMissingCanonical(dbc dbctx.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []string
	err := txx.WithContext(dbc.Ctx).Raw(`
		SELECT DISTINCT r.fingerprint
		FROM raw_messages r
		LEFT JOIN canonical_messages c ON c.fingerprint = r.fingerprint
		WHERE c.fingerprint IS NULL
		ORDER BY r.fingerprint
		LIMIT ?;
	`, limit).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rawMessageRepo) FingerprintsAfter(dbc dbctx.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []string
	err := txx.WithContext(dbc.Ctx).Raw(`
		SELECT DISTINCT fingerprint
		FROM raw_messages
		WHERE fingerprint > ?
		ORDER BY fingerprint
		LIMIT ?;
	`, after, limit).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Search ranks with ts_rank_cd over the stored tsvector; ties break on
// recency. An empty query returns the most recent rows matching the
// filters rather than an error.
func (r *rawMessageRepo) Search(dbc dbctx.Context, q MessageSearchQuery) ([]MessageHit, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}

	where := "1=1"
	args := []any{}
	if q.GroupID != nil && *q.GroupID != uuid.Nil {
		where += " AND raw_messages.group_id = ?"
		args = append(args, *q.GroupID)
	}
	if s := strings.TrimSpace(q.Sender); s != "" {
		where += " AND raw_messages.sender_id IN (SELECT id FROM senders WHERE display_name ILIKE ?)"
		args = append(args, "%"+s+"%")
	}
	if q.After != nil {
		where += " AND raw_messages.timestamp > ?"
		args = append(args, *q.After)
	}
	if q.Before != nil {
		where += " AND raw_messages.timestamp < ?"
		args = append(args, *q.Before)
	}

	term := strings.TrimSpace(q.Query)

	type row struct {
		types.RawMessage
		Rank float64 `gorm:"column:rank"`
	}
	var rows []row

	if term == "" {
		sql := fmt.Sprintf(`
			SELECT raw_messages.*, 0.0 AS rank
			FROM raw_messages
			WHERE %s
			ORDER BY raw_messages.timestamp DESC
			LIMIT %d;
		`, where, q.Limit)
		if err := txx.WithContext(dbc.Ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
			return nil, err
		}
	} else {
		sql := fmt.Sprintf(`
			SELECT raw_messages.*,
			       ts_rank_cd(raw_messages.content_tsv, plainto_tsquery('english', ?)) AS rank
			FROM raw_messages
			WHERE %s
				AND raw_messages.content_tsv @@ plainto_tsquery('english', ?)
			ORDER BY rank DESC, raw_messages.timestamp DESC
			LIMIT %d;
		`, where, q.Limit)
		all := append([]any{term}, args...)
		all = append(all, term)
		if err := txx.WithContext(dbc.Ctx).Raw(sql, all...).Scan(&rows).Error; err != nil {
			return nil, err
		}
	}

	out := make([]MessageHit, 0, len(rows))
	for i := range rows {
		m := rows[i].RawMessage
		out = append(out, MessageHit{Msg: &m, Rank: rows[i].Rank})
	}
	return out, nil
}

func (r *rawMessageRepo) SearchTop(dbc dbctx.Context, query string, limit int) ([]MessageTopHit, error) {
	if strings.TrimSpace(query) == "" {
		return []MessageTopHit{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}

	type row struct {
		types.RawMessage
		GroupName string  `gorm:"column:group_name"`
		Rank      float64 `gorm:"column:rank"`
		Snippet   string  `gorm:"column:snippet"`
	}
	var rows []row
	err := txx.WithContext(dbc.Ctx).Raw(fmt.Sprintf(`
		SELECT raw_messages.*,
		       g.name AS group_name,
		       ts_rank_cd(raw_messages.content_tsv, plainto_tsquery('english', ?)) AS rank,
		       ts_headline('english', raw_messages.content, plainto_tsquery('english', ?),
		                   'ShortWord=3, MaxFragments=2') AS snippet
		FROM raw_messages
		LEFT JOIN groups g ON g.id = raw_messages.group_id
		WHERE raw_messages.content_tsv @@ plainto_tsquery('english', ?)
		ORDER BY rank DESC, raw_messages.timestamp DESC
		LIMIT %d;
	`, limit), query, query, query).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]MessageTopHit, 0, len(rows))
	for i := range rows {
		m := rows[i].RawMessage
		out = append(out, MessageTopHit{
			Msg:       &m,
			GroupName: rows[i].GroupName,
			Rank:      rows[i].Rank,
			Snippet:   rows[i].Snippet,
		})
	}
	return out, nil
}

// ClaimUnprocessed hands out unprocessed rows to exactly one caller per
// lease epoch: SKIP LOCKED keeps concurrent claimers from overlapping,
// and a row already claimed inside the lease window is not re-delivered.
func (r *rawMessageRepo) ClaimUnprocessed(dbc dbctx.Context, leaseExpiry time.Time, limit int) ([]*types.RawMessage, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.RawMessage
	err := txx.WithContext(dbc.Ctx).Raw(`
		UPDATE raw_messages
		SET claimed_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id
			FROM raw_messages
			WHERE processed = false
				AND (claimed_at IS NULL OR claimed_at < ?)
			ORDER BY timestamp ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *;
	`, leaseExpiry, limit).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rawMessageRepo) MarkProcessed(dbc dbctx.Context, id uuid.UUID, entities datatypes.JSON) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing raw message id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	updates := map[string]interface{}{
		"processed":  true,
		"claimed_at": nil,
		"updated_at": time.Now().UTC(),
	}
	if entities != nil {
		updates["extracted_entities"] = entities
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.RawMessage{}).
		Where("id = ?", id).
		Updates(updates).Error
}
