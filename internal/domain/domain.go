package domain

import (
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain/chat"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain/listings"
)

// Aliases so call sites can use the flat domain package.

type (
	Group            = chat.Group
	Sender           = chat.Sender
	RawMessage       = chat.RawMessage
	CanonicalMessage = chat.CanonicalMessage

	ItemForSale = listings.ItemForSale
	Apartment   = listings.Apartment
)
