package app

import (
	httpH "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http/handlers"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Ingest    *httpH.IngestHandler
	Search    *httpH.SearchHandler
	Canonical *httpH.CanonicalHandler
	Process   *httpH.ProcessHandler
	Listings  *httpH.ListingsHandler
}

func wireHandlers(log *logger.Logger, s Services, r Repos) Handlers {
	return Handlers{
		Health:    httpH.NewHealthHandler(),
		Ingest:    httpH.NewIngestHandler(log, s.Ingest),
		Search:    httpH.NewSearchHandler(log, s.Search),
		Canonical: httpH.NewCanonicalHandler(log, s.Canonical),
		Process:   httpH.NewProcessHandler(log, s.Feed),
		Listings:  httpH.NewListingsHandler(log, r.Items, r.Apartments),
	}
}
