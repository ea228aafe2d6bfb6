package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一响应结构
type Body struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, Body{Code: 0, Msg: msg, Data: data})
}

func Created(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusCreated, Body{Code: 0, Msg: msg, Data: data})
}

func Fail(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusBadRequest, Body{Code: 1, Msg: msg, Data: data})
}

// FailWithStatus 用于需要精确 HTTP 状态码的失败（401/403/404/409 等）
func FailWithStatus(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Body{Code: 1, Msg: msg, Data: data})
}
