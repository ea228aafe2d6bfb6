package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"VoiceBank/internal/models"
	"VoiceBank/pkg/auth"
	"VoiceBank/pkg/config"
	"VoiceBank/pkg/logger"
	"VoiceBank/pkg/metrics"
	"VoiceBank/pkg/response"
	"VoiceBank/pkg/search"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const listCacheTTL = 30 * time.Second

func listCacheKey(userID string) string { return "recordings:user:" + userID }

// 接收录音上传：multipart 表单，字段 title/description/script_text/audio_file
func (h *Handlers) handleUploadRecording(c *gin.Context) {
	id := auth.CurrentIdentity(c)

	title := strings.TrimSpace(c.PostForm("title"))
	scriptText := strings.TrimSpace(c.PostForm("script_text"))
	if title == "" || scriptText == "" {
		response.FailWithStatus(c, http.StatusBadRequest, "title and script_text are required", nil)
		return
	}

	fileHeader, err := c.FormFile("audio_file")
	if err != nil {
		response.FailWithStatus(c, http.StatusBadRequest, "audio_file is required", nil)
		return
	}
	if max := config.GlobalConfig.MaxUploadSize; max > 0 && fileHeader.Size > max {
		response.FailWithStatus(c, http.StatusBadRequest, "audio file too large", nil)
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/wav"
	}
	// 只收音频，具体编码不做服务端校验
	if !strings.HasPrefix(contentType, "audio/") {
		response.FailWithStatus(c, http.StatusBadRequest, "audio_file must be an audio upload", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.FailWithStatus(c, http.StatusBadRequest, "cannot read audio_file", nil)
		return
	}
	defer file.Close()

	recID := uuid.NewString()
	ext := path.Ext(fileHeader.Filename)
	if ext == "" {
		ext = ".wav"
	}
	key := "recordings/" + recID + ext

	if err := h.store.Write(c.Request.Context(), key, file, fileHeader.Size, contentType); err != nil {
		logger.Error("store audio object", zap.String("key", key), zap.Error(err))
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to store audio", nil)
		return
	}

	rec := &models.Recording{
		ID:          recID,
		UserID:      id.Subject,
		Title:       title,
		Description: strings.TrimSpace(c.PostForm("description")),
		ScriptText:  scriptText,
		AudioURL:    h.store.PublicURL(key),
		StorageKey:  key,
		Format:      strings.TrimPrefix(ext, "."),
		SizeBytes:   fileHeader.Size,
	}
	if err := models.CreateRecording(h.db, rec); err != nil {
		// 元数据落库失败时回收已写入的对象
		_ = h.store.Delete(c.Request.Context(), key)
		logger.Error("persist recording", zap.String("id", recID), zap.Error(err))
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to save recording", nil)
		return
	}

	metrics.ObserveUpload(fileHeader.Size)
	_ = h.cache.Delete(c.Request.Context(), listCacheKey(id.Subject))

	if h.search != nil {
		err := h.search.Index(c.Request.Context(), search.Doc{
			ID:          rec.ID,
			UserID:      rec.UserID,
			Title:       rec.Title,
			Description: rec.Description,
			ScriptText:  rec.ScriptText,
		})
		if err != nil {
			logger.Warn("index recording", zap.String("id", rec.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, rec)
}

// 按用户列出录音，仅本人可见，按创建时间倒序
func (h *Handlers) handleListRecordings(c *gin.Context) {
	id := auth.CurrentIdentity(c)
	userID := c.Param("user_id")
	if userID != id.Subject {
		response.FailWithStatus(c, http.StatusForbidden, "cannot list another user's recordings", nil)
		return
	}

	cacheKey := listCacheKey(userID)
	if raw, ok := h.cache.Get(c.Request.Context(), cacheKey); ok {
		if body, ok := raw.(string); ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(body))
			return
		}
	}

	recordings, err := models.GetRecordingsByUser(h.db, userID)
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to list recordings", nil)
		return
	}

	c.JSON(http.StatusOK, recordings)
	// 缓存渲染后的 JSON，本地与 Redis 两种后端行为一致
	if body, err := json.Marshal(recordings); err == nil {
		_ = h.cache.Set(c.Request.Context(), cacheKey, string(body), listCacheTTL)
	}
}

// 获取单条录音
func (h *Handlers) handleGetRecording(c *gin.Context) {
	id := auth.CurrentIdentity(c)

	rec, err := models.GetRecording(h.db, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.FailWithStatus(c, http.StatusNotFound, "recording not found", nil)
		return
	}
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to load recording", nil)
		return
	}
	if rec.UserID != id.Subject {
		response.FailWithStatus(c, http.StatusForbidden, "not the owner of this recording", nil)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// 删除录音及其音频对象
func (h *Handlers) handleDeleteRecording(c *gin.Context) {
	id := auth.CurrentIdentity(c)

	rec, err := models.GetRecording(h.db, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.FailWithStatus(c, http.StatusNotFound, "recording not found", nil)
		return
	}
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to load recording", nil)
		return
	}
	if rec.UserID != id.Subject {
		response.FailWithStatus(c, http.StatusForbidden, "not the owner of this recording", nil)
		return
	}

	if err := models.DeleteRecording(h.db, rec.ID); err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to delete recording", nil)
		return
	}

	// 对象删除失败不回滚元数据，留给清理任务兜底
	if rec.StorageKey != "" {
		if err := h.store.Delete(c.Request.Context(), rec.StorageKey); err != nil {
			logger.Warn("delete audio object", zap.String("key", rec.StorageKey), zap.Error(err))
		}
	}
	if h.search != nil {
		_ = h.search.Delete(c.Request.Context(), rec.ID)
	}
	_ = h.cache.Delete(c.Request.Context(), listCacheKey(id.Subject))

	response.Success(c, "recording deleted", nil)
}
