package models

import (
	"time"

	"gorm.io/gorm"
)

// Recording 一条已上传的语音样本，创建后元数据不可修改，仅可删除
type Recording struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	UserID        string    `json:"user_id" gorm:"size:36;index"` // 录音者（身份提供方 subject id）
	Title         string    `json:"title" gorm:"size:255"`
	Description   string    `json:"description" gorm:"size:1024"`
	ScriptText    string    `json:"script_text" gorm:"type:text"` // 用户朗读的提示文本
	AudioURL      string    `json:"audio_url" gorm:"size:1024"`   // 对外播放地址
	StorageKey    string    `json:"-" gorm:"size:255"`            // 对象存储键
	Format        string    `json:"format,omitempty" gorm:"size:32"`
	SizeBytes     int64     `json:"size_bytes,omitempty"`
	DurationMs    int       `json:"duration_ms,omitempty"`
	Transcription string    `json:"transcription,omitempty" gorm:"type:text"` // 可选：自动语音识别结果
	Transcribed   bool      `json:"-" gorm:"index"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// CreateRecording 保存一条录音记录
func CreateRecording(db *gorm.DB, rec *Recording) error {
	return db.Create(rec).Error
}

// GetRecording 按 ID 获取录音
func GetRecording(db *gorm.DB, id string) (*Recording, error) {
	var rec Recording
	if err := db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecordingsByUser 获取某用户的全部录音，新的在前
func GetRecordingsByUser(db *gorm.DB, userID string) ([]Recording, error) {
	var recs []Recording
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteRecording 删除录音记录
func DeleteRecording(db *gorm.DB, id string) error {
	return db.Delete(&Recording{}, "id = ?", id).Error
}

// GetUntranscribedRecordings 取待转写的录音（转写任务用）
func GetUntranscribedRecordings(db *gorm.DB, limit int) ([]Recording, error) {
	var recs []Recording
	if err := db.Where("transcribed = ?", false).Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// SaveTranscription 写回转写结果
func SaveTranscription(db *gorm.DB, id, text string) error {
	return db.Model(&Recording{}).Where("id = ?", id).
		Updates(map[string]any{"transcription": text, "transcribed": true}).Error
}

// AllStorageKeys 返回库中全部对象存储键（清理孤儿对象用）
func AllStorageKeys(db *gorm.DB) (map[string]bool, error) {
	var keys []string
	if err := db.Model(&Recording{}).Pluck("storage_key", &keys).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}
