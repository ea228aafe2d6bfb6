package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "VoiceBank/internal/handler"
	"VoiceBank/internal/listeners"
	"VoiceBank/internal/models"
	"VoiceBank/pkg/auth"
	"VoiceBank/pkg/backup"
	"VoiceBank/pkg/cache"
	"VoiceBank/pkg/config"
	"VoiceBank/pkg/logger"
	"VoiceBank/pkg/scheduler"
	"VoiceBank/pkg/search"
	stores "VoiceBank/pkg/storage"
	"VoiceBank/pkg/transcribe"
	"VoiceBank/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig

	logger.Init(cfg.Log)
	defer logger.Sync()

	db, err := util.OpenDatabase(&gorm.Config{}, cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	store, err := stores.New(cfg.StorageDriver)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}

	c, err := cache.New(cache.Config{
		Type: cfg.CacheDriver,
		Redis: cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
	})
	if err != nil {
		logger.Fatal("init cache", zap.Error(err))
	}
	defer c.Close()

	var se search.Engine
	if cfg.SearchEnabled {
		se, err = search.New(cfg.SearchPath)
		if err != nil {
			logger.Fatal("open search index", zap.Error(err))
		}
		defer se.Close()
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Issuer:       cfg.AuthProjectURL,
		Secret:       cfg.AuthJWTSecret,
		PublicKeyPEM: cfg.AuthPublicKey,
	})
	if err != nil {
		logger.Fatal("init token verifier", zap.Error(err))
	}

	listeners.InitProfileListeners()

	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// 本地存储时直接由本服务提供音频文件
	if local, ok := store.(*stores.LocalStore); ok {
		engine.Static("/uploads", local.Dir)
	}

	handlers.NewHandlers(db, store, c, se, verifier).Register(engine)

	cron := startJobs(db, store, se)
	defer cron.Stop()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: engine,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down ...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
}

// startJobs 注册后台任务：语音转写、孤儿对象清理、数据库备份
func startJobs(db *gorm.DB, store stores.Store, se search.Engine) *scheduler.Cron {
	cfg := config.GlobalConfig
	cron := scheduler.NewCron(time.Local)

	if cfg.TranscribeEnabled && cfg.OpenAIKey != "" {
		expr := cfg.TranscribeCron
		if expr == "" {
			expr = "@every 5m"
		}
		whisper := transcribe.NewWhisper(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.TranscribeModel, store, logrus.StandardLogger())
		worker := transcribe.NewWorker(db, whisper, 10, logrus.StandardLogger())
		if _, err := cron.Add(expr, worker); err != nil {
			logger.Warn("schedule transcribe worker", zap.Error(err))
		}
	}

	if cfg.CleanupCron != "" {
		if _, err := cron.AddWithCtx(cfg.CleanupCron, func(ctx context.Context) {
			cleanupOrphans(ctx, db, store)
		}); err != nil {
			logger.Warn("schedule cleanup job", zap.Error(err))
		}
	}

	if cfg.BackupEnabled && cfg.BackupSchedule != "" {
		if _, err := cron.AddWithCtx(cfg.BackupSchedule, func(ctx context.Context) {
			backup.Run()
		}); err != nil {
			logger.Warn("schedule backup job", zap.Error(err))
		}
	}

	cron.Start()
	return cron
}

// cleanupOrphans 删除没有对应元数据记录的音频对象
func cleanupOrphans(ctx context.Context, db *gorm.DB, store stores.Store) {
	known, err := models.AllStorageKeys(db)
	if err != nil {
		logger.Warn("cleanup: list storage keys", zap.Error(err))
		return
	}
	keys, err := store.List(ctx, "recordings/")
	if err != nil {
		logger.Warn("cleanup: list objects", zap.Error(err))
		return
	}
	removed := 0
	for _, key := range keys {
		if known[key] {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			logger.Warn("cleanup: delete orphan", zap.String("key", key), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("cleanup: removed orphan objects", zap.Int("count", removed))
	}
}
