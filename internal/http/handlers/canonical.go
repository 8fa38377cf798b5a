package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http/response"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/services"
)

type CanonicalHandler struct {
	log       *logger.Logger
	canonical services.CanonicalService
}

func NewCanonicalHandler(log *logger.Logger, canonical services.CanonicalService) *CanonicalHandler {
	return &CanonicalHandler{
		log:       log.With("handler", "CanonicalHandler"),
		canonical: canonical,
	}
}

func (h *CanonicalHandler) Get(c *gin.Context) {
	fingerprint := c.Param("fingerprint")
	row, err := h.canonical.Get(c.Request.Context(), fingerprint)
	if err != nil {
		h.log.Error("canonical lookup failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if row == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	response.RespondOK(c, row)
}

type backfillRequest struct {
	BatchSize   int  `json:"batch_size"`
	Concurrency int  `json:"concurrency"`
	MissingOnly bool `json:"missing_only"`
}

func (h *CanonicalHandler) Backfill(c *gin.Context) {
	var req backfillRequest
	// An empty body means default options.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	report, err := h.canonical.Backfill(c.Request.Context(), services.BackfillOptions{
		BatchSize:   req.BatchSize,
		Concurrency: req.Concurrency,
		MissingOnly: req.MissingOnly,
	})
	if err != nil {
		h.log.Error("backfill failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "backfill_failed", err)
		return
	}
	response.RespondOK(c, report)
}
