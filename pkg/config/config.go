package config

import (
	"log"
	"os"
	"strings"

	"VoiceBank/pkg/logger"
	"VoiceBank/pkg/notification"
	"VoiceBank/pkg/util"
)

type Config struct {
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"` // gin mode: debug/release/test
	APIPrefix string `env:"API_PREFIX"`

	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`

	// 身份提供方（外部）：项目地址 + 校验密钥
	AuthProjectURL string `env:"AUTH_PROJECT_URL"`
	AuthJWTSecret  string `env:"AUTH_JWT_SECRET"`
	AuthPublicKey  string `env:"AUTH_PUBLIC_KEY"` // PEM，可选，优先于对称密钥

	StorageDriver string `env:"STORAGE_DRIVER"` // local | minio | cos
	UploadDir     string `env:"UPLOAD_DIR"`

	CacheDriver   string `env:"CACHE_DRIVER"` // local | redis
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	SearchEnabled bool   `env:"SEARCH_ENABLED"`
	SearchPath    string `env:"SEARCH_PATH"`

	TranscribeEnabled bool   `env:"TRANSCRIBE_ENABLED"`
	TranscribeCron    string `env:"TRANSCRIBE_CRON"`
	OpenAIKey         string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL"`
	TranscribeModel   string `env:"TRANSCRIBE_MODEL"`

	CleanupCron string `env:"CLEANUP_CRON"`

	BackupEnabled  bool   `env:"BACKUP_ENABLED"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupSchedule string `env:"BACKUP_SCHEDULE"`

	UploadRate    string `env:"UPLOAD_RATE"` // e.g. "30-M"
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE"`

	CORSOrigins []string `env:"CORS_ORIGINS"`

	MailEnabled bool `env:"MAIL_ENABLED"`

	Log  logger.LogConfig
	Mail notification.MailConfig
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = &Config{
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnv("MODE"),
		APIPrefix: util.GetEnv("API_PREFIX"),

		DBDriver: util.GetEnv("DB_DRIVER"),
		DSN:      util.GetEnv("DSN"),

		AuthProjectURL: util.GetEnv("AUTH_PROJECT_URL"),
		AuthJWTSecret:  util.GetEnv("AUTH_JWT_SECRET"),
		AuthPublicKey:  util.GetEnv("AUTH_PUBLIC_KEY"),

		StorageDriver: util.GetEnvDefault("STORAGE_DRIVER", "local"),
		UploadDir:     util.GetEnvDefault("UPLOAD_DIR", "uploads"),

		CacheDriver:   util.GetEnvDefault("CACHE_DRIVER", "local"),
		RedisAddr:     util.GetEnv("REDIS_ADDR"),
		RedisPassword: util.GetEnv("REDIS_PASSWORD"),
		RedisDB:       int(util.GetIntEnv("REDIS_DB")),

		SearchEnabled: util.GetBoolEnv("SEARCH_ENABLED"),
		SearchPath:    util.GetEnvDefault("SEARCH_PATH", "recordings.bleve"),

		TranscribeEnabled: util.GetBoolEnv("TRANSCRIBE_ENABLED"),
		TranscribeCron:    util.GetEnvDefault("TRANSCRIBE_CRON", "@every 5m"),
		OpenAIKey:         util.GetEnv("OPENAI_API_KEY"),
		OpenAIBaseURL:     util.GetEnv("OPENAI_BASE_URL"),
		TranscribeModel:   util.GetEnvDefault("TRANSCRIBE_MODEL", "whisper-1"),

		CleanupCron: util.GetEnvDefault("CLEANUP_CRON", "0 4 * * *"),

		BackupEnabled:  util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:     util.GetEnvDefault("BACKUP_PATH", "backups"),
		BackupSchedule: util.GetEnvDefault("BACKUP_SCHEDULE", "0 3 * * *"),

		UploadRate:    util.GetEnvDefault("UPLOAD_RATE", "30-M"),
		MaxUploadSize: util.GetIntEnv("MAX_UPLOAD_SIZE"),

		CORSOrigins: splitOrigins(util.GetEnv("CORS_ORIGINS")),

		MailEnabled: util.GetBoolEnv("MAIL_ENABLED"),

		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Mail: notification.MailConfig{
			Host:     util.GetEnv("MAIL_HOST"),
			Username: util.GetEnv("MAIL_USERNAME"),
			Password: util.GetEnv("MAIL_PASSWORD"),
			Port:     util.GetIntEnv("MAIL_PORT"),
			From:     util.GetEnv("MAIL_FROM"),
		},
	}
	if GlobalConfig.MaxUploadSize <= 0 {
		GlobalConfig.MaxUploadSize = 25 << 20 // 25 MB
	}
	return nil
}

func splitOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
