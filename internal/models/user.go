package models

import "time"

// UserModel is a portal account. Folders and documents are scoped to it.
type UserModel struct {
	Base
	Username      string        `json:"username"        gorm:"uniqueIndex;size:64;not null"`
	Name          string        `json:"name"`
	Mail          string        `json:"mail"`
	Password      string        `json:"-"               gorm:"not null"`
	LastLoginTime *time.Time    `json:"last_login_time"`
	LastLoginIP   string        `json:"last_login_ip"`
	Folders       []FolderModel `json:"-"               gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (UserModel) TableName() string { return "users" }
