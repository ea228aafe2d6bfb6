package handlers

import (
	"net/http"
	"time"

	"VoiceBank/pkg/auth"
	"VoiceBank/pkg/cache"
	"VoiceBank/pkg/config"
	"VoiceBank/pkg/metrics"
	"VoiceBank/pkg/middleware"
	"VoiceBank/pkg/search"
	stores "VoiceBank/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handlers struct {
	db       *gorm.DB
	store    stores.Store
	cache    cache.Cache
	search   search.Engine // nil 时禁用全文检索
	verifier *auth.Verifier
}

func NewHandlers(db *gorm.DB, store stores.Store, c cache.Cache, se search.Engine, verifier *auth.Verifier) *Handlers {
	return &Handlers{
		db:       db,
		store:    store,
		cache:    c,
		search:   se,
		verifier: verifier,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(cors.New(corsConfig()))
	engine.Use(metrics.Middleware())

	r := engine.Group(config.GlobalConfig.APIPrefix)

	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerProfileRoutes(r)
	h.registerRecordingRoutes(r)
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if origins := config.GlobalConfig.CORSOrigins; len(origins) > 0 {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	return cfg
}

// User Profile Module
func (h *Handlers) registerProfileRoutes(r *gin.RouterGroup) {
	user := r.Group("/user", auth.Required(h.verifier))
	{
		user.GET("/profile", h.handleGetProfile)

		user.PUT("/profile/update", h.handleUpdateProfile)

		user.POST("/profile/create", h.handleCreateProfile)

		// sync 必须保持幂等，不挂 Idempotency 中间件
		user.POST("/profile/sync", h.handleSyncProfile)
	}
}

// Recording Module
func (h *Handlers) registerRecordingRoutes(r *gin.RouterGroup) {
	rec := r.Group("/recordings", auth.Required(h.verifier))
	{
		rec.POST("/upload",
			middleware.RateLimiter(middleware.RateLimiterConfig{Rate: config.GlobalConfig.UploadRate}),
			middleware.Idempotency(middleware.IdempotencyConfig{TTL: 30 * time.Second}),
			h.handleUploadRecording)

		rec.GET("/prompts", h.handleGetRecordingPrompts)

		rec.GET("/search", h.handleSearchRecordings)

		rec.GET("/user/:user_id", h.handleListRecordings)

		rec.GET("/:id", h.handleGetRecording)

		rec.DELETE("/:id", h.handleDeleteRecording)
	}
}
