package listings

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type ItemForSaleRepo interface {
	Upsert(dbc dbctx.Context, row *types.ItemForSale) error
	List(dbc dbctx.Context, category string, limit int) ([]*types.ItemForSale, error)
}

type itemForSaleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewItemForSaleRepo(db *gorm.DB, log *logger.Logger) ItemForSaleRepo {
	return &itemForSaleRepo{db: db, log: log.With("repo", "ItemForSaleRepo")}
}

func (r *itemForSaleRepo) Upsert(dbc dbctx.Context, row *types.ItemForSale) error {
	if row == nil || row.ItemKey == "" {
		return fmt.Errorf("missing item row")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	// Re-running extraction over the same message must not duplicate items.
	return txx.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "price", "category", "condition",
			"location", "contact_info", "updated_at",
		}),
	}).Create(row).Error
}

func (r *itemForSaleRepo) List(dbc dbctx.Context, category string, limit int) ([]*types.ItemForSale, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).Model(&types.ItemForSale{})
	if c := strings.TrimSpace(category); c != "" {
		q = q.Where("category = ?", c)
	}
	var out []*types.ItemForSale
	if err := q.Order("posted_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
