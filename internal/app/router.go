package app

import (
	httpPkg "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

func wireRouter(log *logger.Logger, h Handlers) *httpPkg.Server {
	return httpPkg.NewServer(httpPkg.RouterConfig{
		Log:              log,
		HealthHandler:    h.Health,
		IngestHandler:    h.Ingest,
		SearchHandler:    h.Search,
		CanonicalHandler: h.Canonical,
		ProcessHandler:   h.Process,
		ListingsHandler:  h.Listings,
	})
}
