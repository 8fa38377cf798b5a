package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type GroupRepo interface {
	GetByKey(dbc dbctx.Context, groupKey string) (*types.Group, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Group, error)
	Create(dbc dbctx.Context, row *types.Group) (*types.Group, error)
	TouchIngested(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, log *logger.Logger) GroupRepo {
	return &groupRepo{db: db, log: log.With("repo", "GroupRepo")}
}

func (r *groupRepo) GetByKey(dbc dbctx.Context, groupKey string) (*types.Group, error) {
	if groupKey == "" {
		return nil, fmt.Errorf("missing group_key")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Group
	err := txx.WithContext(dbc.Ctx).
		Where("group_key = ?", groupKey).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *groupRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Group, error) {
	if len(ids) == 0 {
		return []*types.Group{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Group
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Group{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *groupRepo) Create(dbc dbctx.Context, row *types.Group) (*types.Group, error) {
	if row == nil {
		return nil, fmt.Errorf("missing group row")
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

func (r *groupRepo) TouchIngested(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing group id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Group{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_ingested_at": at,
			"updated_at":       time.Now().UTC(),
		}).Error
}
