package handlers

import (
	"errors"
	"net/http"

	"VoiceBank/internal/models"
	"VoiceBank/pkg/auth"
	"VoiceBank/pkg/response"
	"VoiceBank/pkg/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 获取当前用户档案；404 表示尚未创建，由前端引导完善资料
func (h *Handlers) handleGetProfile(c *gin.Context) {
	id := auth.CurrentIdentity(c)

	profile, err := models.GetProfile(h.db, id.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.FailWithStatus(c, http.StatusNotFound, "profile not found", nil)
		return
	}
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to load profile", nil)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// 创建用户档案；重复创建返回 409，客户端按成功处理
func (h *Handlers) handleCreateProfile(c *gin.Context) {
	var req struct {
		UserID   string `json:"user_id"`
		Email    string `json:"email"`
		FullName string `json:"full_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithStatus(c, http.StatusBadRequest, "full_name is required", nil)
		return
	}

	id := auth.CurrentIdentity(c)
	// 档案只能建在自己的身份之下
	if req.UserID != "" && req.UserID != id.Subject {
		response.FailWithStatus(c, http.StatusForbidden, "cannot create profile for another user", nil)
		return
	}
	email := req.Email
	if email == "" {
		email = id.Email
	}

	profile, err := models.CreateProfile(h.db, id.Subject, email, req.FullName)
	if errors.Is(err, models.ErrProfileExists) {
		response.FailWithStatus(c, http.StatusConflict, "profile already exists", nil)
		return
	}
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to create profile", nil)
		return
	}

	util.Sig().Emit(models.SigProfileCreate, profile)
	c.JSON(http.StatusCreated, profile)
}

// 更新姓名与邮箱
func (h *Handlers) handleUpdateProfile(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		FullName string `json:"full_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithStatus(c, http.StatusBadRequest, "full_name is required", nil)
		return
	}

	id := auth.CurrentIdentity(c)
	profile, err := models.UpdateProfile(h.db, id.Subject, req.Email, req.FullName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.FailWithStatus(c, http.StatusNotFound, "profile not found", nil)
		return
	}
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to update profile", nil)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// 登录后档案同步，可重复调用
func (h *Handlers) handleSyncProfile(c *gin.Context) {
	id := auth.CurrentIdentity(c)

	if _, err := models.SyncProfile(h.db, id.Subject, id.Email); err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to sync profile", nil)
		return
	}
	response.Success(c, "profile synced", nil)
}
