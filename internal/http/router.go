package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http/handlers"
	httpMW "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http/middleware"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler    *httpH.HealthHandler
	IngestHandler    *httpH.IngestHandler
	SearchHandler    *httpH.SearchHandler
	CanonicalHandler *httpH.CanonicalHandler
	ProcessHandler   *httpH.ProcessHandler
	ListingsHandler  *httpH.ListingsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.IngestHandler != nil {
			api.POST("/ingest/message", cfg.IngestHandler.IngestMessage)
			api.POST("/ingest/chat-export", cfg.IngestHandler.IngestExport)
		}

		if cfg.SearchHandler != nil {
			api.GET("/search/messages", cfg.SearchHandler.SearchMessages)
			api.GET("/search/top", cfg.SearchHandler.TopMessages)
			api.GET("/search/canonical/top", cfg.SearchHandler.TopCanonical)
		}

		if cfg.CanonicalHandler != nil {
			api.GET("/canonical/:fingerprint", cfg.CanonicalHandler.Get)
		}

		if cfg.ProcessHandler != nil {
			api.POST("/process/run", cfg.ProcessHandler.ProcessUnprocessed)
		}
		if cfg.CanonicalHandler != nil {
			api.POST("/process/backfill-canonical", cfg.CanonicalHandler.Backfill)
		}

		if cfg.ListingsHandler != nil {
			api.GET("/items", cfg.ListingsHandler.ListItems)
			api.GET("/apartments", cfg.ListingsHandler.ListApartments)
		}
	}

	return r
}
