package backup

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"VoiceBank/pkg/config"
	"VoiceBank/pkg/logger"

	"go.uber.org/zap"
)

// Run 执行一次元数据库备份（由调度器触发）
func Run() {
	if err := Execute(); err != nil {
		logger.Warn("backup failed", zap.Error(err))
		return
	}
	logger.Info("backup completed")
}

// Execute 根据配置备份数据库
func Execute() error {
	cfg := config.GlobalConfig
	stamp := time.Now().Format("20060102_150405")
	switch cfg.DBDriver {
	case "sqlite", "":
		dst := filepath.Join(cfg.BackupPath, fmt.Sprintf("voicebank_%s.db", stamp))
		return backupSQLite(cfg.DSN, dst)
	case "mysql":
		dst := filepath.Join(cfg.BackupPath, fmt.Sprintf("voicebank_%s.sql", stamp))
		return backupMySQL(cfg.DSN, dst)
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

func backupSQLite(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}
	return nil
}

func backupMySQL(dsn, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer out.Close()

	cmd := exec.Command("mysqldump", dsn)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mysqldump: %w", err)
	}
	return nil
}
