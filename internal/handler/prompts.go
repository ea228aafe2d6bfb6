package handlers

import (
	"net/http"

	"VoiceBank/internal/models"
	"VoiceBank/pkg/response"

	"github.com/gin-gonic/gin"
)

// 获取所有录音提示文本（供用户朗读的句子），按顺序返回
func (h *Handlers) handleGetRecordingPrompts(c *gin.Context) {
	prompts, err := models.GetRecordingPrompts(h.db)
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to load recording prompts", nil)
		return
	}
	c.JSON(http.StatusOK, prompts)
}
