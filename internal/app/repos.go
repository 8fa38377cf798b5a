package app

import (
	"gorm.io/gorm"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type Repos struct {
	Groups      repos.GroupRepo
	Senders     repos.SenderRepo
	RawMessages repos.RawMessageRepo
	Canonical   repos.CanonicalRepo
	Items       repos.ItemForSaleRepo
	Apartments  repos.ApartmentRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Groups:      repos.NewGroupRepo(db, log),
		Senders:     repos.NewSenderRepo(db, log),
		RawMessages: repos.NewRawMessageRepo(db, log),
		Canonical:   repos.NewCanonicalRepo(db, log),
		Items:       repos.NewItemForSaleRepo(db, log),
		Apartments:  repos.NewApartmentRepo(db, log),
	}
}
