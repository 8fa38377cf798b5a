package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http/response"
	apperr "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/pkg/errors"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/services"
)

type IngestHandler struct {
	log    *logger.Logger
	ingest services.IngestService
}

func NewIngestHandler(log *logger.Logger, ingest services.IngestService) *IngestHandler {
	return &IngestHandler{
		log:    log.With("handler", "IngestHandler"),
		ingest: ingest,
	}
}

type ingestMessageRequest struct {
	GroupKey    string    `json:"group_key" binding:"required"`
	GroupName   string    `json:"group_name"`
	SenderName  string    `json:"sender_name"`
	SenderPhone string    `json:"sender_phone"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp" binding:"required"`
	SourceKey   string    `json:"source_key" binding:"required"`
	Links       []string  `json:"links"`
}

func (h *IngestHandler) IngestMessage(c *gin.Context) {
	var req ingestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.ingest.Ingest(c.Request.Context(), services.IngestTuple{
		GroupKey:    req.GroupKey,
		GroupName:   req.GroupName,
		SenderName:  req.SenderName,
		SenderPhone: req.SenderPhone,
		Text:        req.Text,
		Timestamp:   req.Timestamp,
		SourceKey:   req.SourceKey,
		Links:       req.Links,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrValidation):
			response.RespondError(c, http.StatusBadRequest, "invalid_tuple", err)
		case errors.Is(err, apperr.ErrConflict):
			response.RespondError(c, http.StatusConflict, "source_key_conflict", err)
		default:
			h.log.Error("ingest failed", "error", err)
			response.RespondError(c, http.StatusInternalServerError, "ingest_failed", err)
		}
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"message": res.Msg,
		"created": res.Created,
		"count":   res.Count,
	})
}

func (h *IngestHandler) IngestExport(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	defer file.Close()

	opts := services.ExportOptions{
		GroupKey: c.Query("group_key"),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_since", err)
			return
		}
		opts.Since = &since
	}

	report, err := h.ingest.IngestExport(c.Request.Context(), file, opts)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			response.RespondError(c, http.StatusBadRequest, "invalid_export", err)
			return
		}
		h.log.Error("export ingest failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "export_failed", err)
		return
	}
	response.RespondOK(c, report)
}
