package app

import (
	"gorm.io/gorm"

	redisclient "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/clients/redis"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/ingestion"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/services"
)

type Services struct {
	Canonical services.CanonicalService
	Ingest    services.IngestService
	Search    services.SearchService
	Feed      services.ExtractionFeed
	Extractor services.Extractor
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, cache *redisclient.Service) (Services, error) {
	registry, err := ingestion.LoadGroupRegistry(cfg.GroupRegistryPath)
	if err != nil {
		return Services{}, err
	}
	if registry.Len() > 0 {
		log.Info("group registry loaded", "path", cfg.GroupRegistryPath, "groups", registry.Len())
	}

	canonical := services.NewCanonicalService(db, r.RawMessages, r.Canonical, log)
	ingest := services.NewIngestService(db, r.Groups, r.Senders, r.RawMessages, canonical, registry, log)
	search := services.NewSearchService(r.RawMessages, r.Canonical, cache, cfg.SearchCacheTTL, log)

	extractor := services.Extractor(services.NewRulesExtractor(log))
	if cfg.Extractor == "llm" {
		ai, err := services.NewAIClient(log)
		if err != nil {
			log.Warn("llm extractor unavailable, using rules", "error", err)
		} else {
			extractor = services.NewLLMExtractor(ai, extractor, log)
		}
	}

	feed := services.NewExtractionFeed(db, r.RawMessages, r.Items, r.Apartments, extractor, cfg.ExtractionLease, log)

	return Services{
		Canonical: canonical,
		Ingest:    ingest,
		Search:    search,
		Feed:      feed,
		Extractor: extractor,
	}, nil
}
