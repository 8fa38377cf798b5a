package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/repos/chat"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http/response"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/services"
)

type SearchHandler struct {
	log    *logger.Logger
	search services.SearchService
}

func NewSearchHandler(log *logger.Logger, search services.SearchService) *SearchHandler {
	return &SearchHandler{
		log:    log.With("handler", "SearchHandler"),
		search: search,
	}
}

func (h *SearchHandler) SearchMessages(c *gin.Context) {
	q := chat.MessageSearchQuery{
		Query:  c.Query("q"),
		Sender: c.Query("sender"),
		Limit:  intQuery(c, "limit", 50),
	}
	if raw := c.Query("group_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_group_id", err)
			return
		}
		q.GroupID = &id
	}
	var err error
	if q.After, err = timeQuery(c, "after"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_after", err)
		return
	}
	if q.Before, err = timeQuery(c, "before"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_before", err)
		return
	}

	hits, err := h.search.Messages(c.Request.Context(), q)
	if err != nil {
		h.log.Error("message search failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}

	out := make([]gin.H, 0, len(hits))
	for _, hit := range hits {
		out = append(out, gin.H{"message": hit.Msg, "rank": hit.Rank})
	}
	response.RespondOK(c, gin.H{"results": out, "count": len(out)})
}

func (h *SearchHandler) TopMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_query", nil)
		return
	}
	hits, err := h.search.TopMessages(c.Request.Context(), query, intQuery(c, "limit", 10))
	if err != nil {
		h.log.Error("top message search failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}

	out := make([]gin.H, 0, len(hits))
	for _, hit := range hits {
		out = append(out, gin.H{
			"message":    hit.Msg,
			"group_name": hit.GroupName,
			"rank":       hit.Rank,
			"snippet":    hit.Snippet,
		})
	}
	response.RespondOK(c, gin.H{"results": out, "count": len(out)})
}

func (h *SearchHandler) TopCanonical(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_query", nil)
		return
	}
	hits, err := h.search.TopCanonical(c.Request.Context(), query, intQuery(c, "limit", 10))
	if err != nil {
		h.log.Error("canonical search failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}

	out := make([]gin.H, 0, len(hits))
	for _, hit := range hits {
		out = append(out, gin.H{
			"canonical": hit.Msg,
			"rank":      hit.Rank,
			"snippet":   hit.Snippet,
		})
	}
	response.RespondOK(c, gin.H{"results": out, "count": len(out)})
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
