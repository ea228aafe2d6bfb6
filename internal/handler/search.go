package handlers

import (
	"net/http"
	"strings"

	"VoiceBank/internal/models"
	"VoiceBank/pkg/auth"
	"VoiceBank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// 全文检索当前用户的录音（标题、描述、朗读文本）
func (h *Handlers) handleSearchRecordings(c *gin.Context) {
	if h.search == nil {
		response.FailWithStatus(c, http.StatusNotImplemented, "search is not enabled", nil)
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.FailWithStatus(c, http.StatusBadRequest, "query parameter q is required", nil)
		return
	}
	limit := cast.ToInt(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	id := auth.CurrentIdentity(c)
	hits, err := h.search.Search(c.Request.Context(), id.Subject, query, limit)
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "search failed", nil)
		return
	}

	// 命中后按原序补全元数据
	recordings := make([]models.Recording, 0, len(hits))
	for _, hit := range hits {
		rec, err := models.GetRecording(h.db, hit.ID)
		if err != nil {
			continue // 索引落后于删除时跳过
		}
		recordings = append(recordings, *rec)
	}
	c.JSON(http.StatusOK, recordings)
}
