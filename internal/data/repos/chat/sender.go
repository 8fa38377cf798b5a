package chat

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type SenderRepo interface {
	GetByPhone(dbc dbctx.Context, phone string) (*types.Sender, error)
	GetByDisplayName(dbc dbctx.Context, name string) (*types.Sender, error)
	Create(dbc dbctx.Context, row *types.Sender) (*types.Sender, error)
	TouchSeen(dbc dbctx.Context, row *types.Sender, at time.Time) error
}

type senderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSenderRepo(db *gorm.DB, log *logger.Logger) SenderRepo {
	return &senderRepo{db: db, log: log.With("repo", "SenderRepo")}
}

func (r *senderRepo) GetByPhone(dbc dbctx.Context, phone string) (*types.Sender, error) {
	if phone == "" {
		return nil, fmt.Errorf("missing phone")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Sender
	err := txx.WithContext(dbc.Ctx).
		Where("phone = ?", phone).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *senderRepo) GetByDisplayName(dbc dbctx.Context, name string) (*types.Sender, error) {
	if name == "" {
		return nil, fmt.Errorf("missing display name")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Sender
	err := txx.WithContext(dbc.Ctx).
		Where("display_name = ?", name).
		Order("first_seen ASC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *senderRepo) Create(dbc dbctx.Context, row *types.Sender) (*types.Sender, error) {
	if row == nil {
		return nil, fmt.Errorf("missing sender row")
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

func (r *senderRepo) TouchSeen(dbc dbctx.Context, row *types.Sender, at time.Time) error {
	if row == nil {
		return fmt.Errorf("missing sender row")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Sender{}).
		Where("id = ? AND last_seen < ?", row.ID, at).
		Update("last_seen", at).Error
}
