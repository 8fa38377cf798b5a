package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http/response"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/dbctx"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type ListingsHandler struct {
	log        *logger.Logger
	items      repos.ItemForSaleRepo
	apartments repos.ApartmentRepo
}

func NewListingsHandler(log *logger.Logger, items repos.ItemForSaleRepo, apartments repos.ApartmentRepo) *ListingsHandler {
	return &ListingsHandler{
		log:        log.With("handler", "ListingsHandler"),
		items:      items,
		apartments: apartments,
	}
}

func (h *ListingsHandler) ListItems(c *gin.Context) {
	rows, err := h.items.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("category"), intQuery(c, "limit", 50))
	if err != nil {
		h.log.Error("item listing failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"items": rows, "count": len(rows)})
}

func (h *ListingsHandler) ListApartments(c *gin.Context) {
	rows, err := h.apartments.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("type"), intQuery(c, "limit", 50))
	if err != nil {
		h.log.Error("apartment listing failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"apartments": rows, "count": len(rows)})
}
