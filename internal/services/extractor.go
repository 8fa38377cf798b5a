package services

import (
	"context"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
)

// Message categories assigned by extractors.
const (
	CategoryItemForSale = "item_for_sale"
	CategoryApartment   = "apartment"
	CategoryOther       = "other"
)

// Extraction is what an extractor pulled out of one raw message. Entities
// is the free-form field map persisted back onto the message; Item and
// Apartment are set only when the category warrants a listing row.
type Extraction struct {
	Category  string
	Entities  map[string]any
	Item      *types.ItemForSale
	Apartment *types.Apartment
}

// Extractor turns a raw message into structured entities. Implementations
// must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, msg *types.RawMessage) (*Extraction, error)
	Name() string
}
