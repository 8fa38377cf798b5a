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

type ApartmentRepo interface {
	Upsert(dbc dbctx.Context, row *types.Apartment) error
	List(dbc dbctx.Context, listingType string, limit int) ([]*types.Apartment, error)
}

type apartmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApartmentRepo(db *gorm.DB, log *logger.Logger) ApartmentRepo {
	return &apartmentRepo{db: db, log: log.With("repo", "ApartmentRepo")}
}

func (r *apartmentRepo) Upsert(dbc dbctx.Context, row *types.Apartment) error {
	if row == nil || row.ListingKey == "" {
		return fmt.Errorf("missing apartment row")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "listing_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"listing_type", "address", "price_per_month", "bedrooms", "bathrooms",
			"lease_duration", "available_from", "available_until", "amenities",
			"key_features", "contact_info", "utilities_included", "furnished",
			"pet_friendly", "updated_at",
		}),
	}).Create(row).Error
}

func (r *apartmentRepo) List(dbc dbctx.Context, listingType string, limit int) ([]*types.Apartment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).Model(&types.Apartment{})
	if t := strings.TrimSpace(listingType); t != "" {
		q = q.Where("listing_type = ?", t)
	}
	var out []*types.Apartment
	if err := q.Order("posted_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
