package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const SigProfileCreate = "profile.create"

var ErrProfileExists = errors.New("profile already exists")

// UserProfile 用户档案，ID 与身份提供方的 subject id 一致，每个身份恰好一条
type UserProfile struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Email     string    `json:"email" gorm:"size:255;index"`
	FullName  string    `json:"full_name" gorm:"size:255"` // 为空视为档案未完善
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsComplete 档案是否完善：仅要求 full_name 非空
func (p *UserProfile) IsComplete() bool {
	return p.FullName != ""
}

// GetProfile 按身份 ID 获取档案
func GetProfile(db *gorm.DB, id string) (*UserProfile, error) {
	var p UserProfile
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile 创建档案；已存在时返回 ErrProfileExists（调用方按幂等处理）
func CreateProfile(db *gorm.DB, id, email, fullName string) (*UserProfile, error) {
	var count int64
	if err := db.Model(&UserProfile{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrProfileExists
	}
	p := &UserProfile{ID: id, Email: email, FullName: fullName}
	if err := db.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProfile 更新档案的姓名与邮箱
func UpdateProfile(db *gorm.DB, id, email, fullName string) (*UserProfile, error) {
	var p UserProfile
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	p.Email = email
	p.FullName = fullName
	if err := db.Save(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SyncProfile 幂等同步：不存在则按身份元数据创建，存在则回填空缺的邮箱
func SyncProfile(db *gorm.DB, id, email string) (*UserProfile, error) {
	var p UserProfile
	err := db.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = UserProfile{ID: id, Email: email}
		if err := db.Create(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Email == "" && email != "" {
		p.Email = email
		if err := db.Save(&p).Error; err != nil {
			return nil, err
		}
	}
	return &p, nil
}
