package models

import (
	"time"

	"gorm.io/gorm"
)

// RecordingPrompt 待朗读的提示句
type RecordingPrompt struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Text      string    `json:"text" gorm:"size:1024"` // 屏幕上显示的待读文本
	Order     int       `json:"order"`                 // 第几句，从1开始
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// GetRecordingPrompts 按顺序返回全部提示句
func GetRecordingPrompts(db *gorm.DB) ([]RecordingPrompt, error) {
	var prompts []RecordingPrompt
	if err := db.Order(`"order" ASC`).Find(&prompts).Error; err != nil {
		return nil, err
	}
	return prompts, nil
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserProfile{}, &Recording{}, &RecordingPrompt{})
}
