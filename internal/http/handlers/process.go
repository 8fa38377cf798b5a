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

type ProcessHandler struct {
	log  *logger.Logger
	feed services.ExtractionFeed
}

func NewProcessHandler(log *logger.Logger, feed services.ExtractionFeed) *ProcessHandler {
	return &ProcessHandler{
		log:  log.With("handler", "ProcessHandler"),
		feed: feed,
	}
}

type processRequest struct {
	BatchSize int `json:"batch_size"`
}

func (h *ProcessHandler) ProcessUnprocessed(c *gin.Context) {
	var req processRequest
	// An empty body means default options.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 200
	}

	report, err := h.feed.ProcessUnprocessed(c.Request.Context(), req.BatchSize)
	if err != nil {
		h.log.Error("processing failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "process_failed", err)
		return
	}
	response.RespondOK(c, report)
}
