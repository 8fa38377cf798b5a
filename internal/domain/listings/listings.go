package listings

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Extraction outputs. Both rows reference the raw message they were
// extracted from and are written only through the extraction feed's
// MarkProcessed path.

type ItemForSale struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ItemKey      string    `gorm:"type:text;not null;uniqueIndex" json:"item_key"`
	RawMessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"raw_message_id"`
	SenderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`

	Title       string   `gorm:"type:text;not null;index" json:"title"`
	Description string   `gorm:"type:text;not null;default:''" json:"description"`
	Price       *float64 `gorm:"type:numeric(10,2)" json:"price,omitempty"`
	Category    string   `gorm:"type:text;not null;default:'other';index" json:"category"`
	Condition   string   `gorm:"type:text;not null;default:''" json:"condition"` // new|like_new|good|fair|poor
	Location    string   `gorm:"type:text;not null;default:''" json:"location"`

	ContactInfo datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"contact_info"`

	AvailabilityStatus string    `gorm:"type:text;not null;default:'available'" json:"availability_status"`
	PostedAt           time.Time `gorm:"not null;index" json:"posted_at"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ItemForSale) TableName() string { return "items_for_sale" }

type Apartment struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ListingKey   string    `gorm:"type:text;not null;uniqueIndex" json:"listing_key"`
	RawMessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"raw_message_id"`
	SenderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`

	ListingType   string   `gorm:"type:text;not null;default:'rental';index" json:"listing_type"` // roommate|sublet|rental
	Address       string   `gorm:"type:text;not null;default:''" json:"address"`
	PricePerMonth *float64 `gorm:"type:numeric(10,2);index" json:"price_per_month,omitempty"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	Bathrooms     *float64 `json:"bathrooms,omitempty"`
	LeaseDuration string   `gorm:"type:text;not null;default:''" json:"lease_duration"`

	AvailableFrom  *time.Time `json:"available_from,omitempty"`
	AvailableUntil *time.Time `json:"available_until,omitempty"`

	Amenities   datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"amenities"`
	KeyFeatures datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"key_features"`
	ContactInfo datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"contact_info"`

	UtilitiesIncluded *bool `json:"utilities_included,omitempty"`
	Furnished         *bool `json:"furnished,omitempty"`
	PetFriendly       *bool `json:"pet_friendly,omitempty"`

	AvailabilityStatus string    `gorm:"type:text;not null;default:'available'" json:"availability_status"`
	PostedAt           time.Time `gorm:"not null;index" json:"posted_at"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Apartment) TableName() string { return "apartments" }
