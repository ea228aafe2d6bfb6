package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig 限流配置
//
// Rate 形如 "30-M"（每分钟 30 次）、"5-S"。按客户端 IP 计数，
// Store 默认内存实现，可注入外部存储（如 Redis）。
type RateLimiterConfig struct {
	Rate        string   `json:"rate"`
	SkipPaths   []string `json:"skip_paths"` // 前缀匹配
	DenyStatus  int      `json:"deny_status"`
	DenyMessage string   `json:"deny_message"`
	Store       limiter.Store
}

// RateLimiter 基于 ulule/limiter 的限流中间件
func RateLimiter(cfg RateLimiterConfig) gin.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		panic("invalid rate format: " + cfg.Rate)
	}
	store := cfg.Store
	if store == nil {
		store = memory.NewStore()
	}
	if cfg.DenyStatus == 0 {
		cfg.DenyStatus = http.StatusTooManyRequests
	}
	if cfg.DenyMessage == "" {
		cfg.DenyMessage = "too many requests"
	}
	lim := limiter.New(store, rate)

	return func(c *gin.Context) {
		for _, p := range cfg.SkipPaths {
			if len(p) > 0 && len(c.Request.URL.Path) >= len(p) && c.Request.URL.Path[:len(p)] == p {
				c.Next()
				return
			}
		}
		lctx, err := lim.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		if lctx.Reached {
			c.AbortWithStatusJSON(cfg.DenyStatus, gin.H{"error": cfg.DenyMessage})
			return
		}
		c.Next()
	}
}
