package repos

import (
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos/chat"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos/listings"
)

type GroupRepo = chat.GroupRepo
type SenderRepo = chat.SenderRepo
type RawMessageRepo = chat.RawMessageRepo
type CanonicalRepo = chat.CanonicalRepo

type ItemForSaleRepo = listings.ItemForSaleRepo
type ApartmentRepo = listings.ApartmentRepo

var (
	NewGroupRepo      = chat.NewGroupRepo
	NewSenderRepo     = chat.NewSenderRepo
	NewRawMessageRepo = chat.NewRawMessageRepo
	NewCanonicalRepo  = chat.NewCanonicalRepo

	NewItemForSaleRepo = listings.NewItemForSaleRepo
	NewApartmentRepo   = listings.NewApartmentRepo
)
