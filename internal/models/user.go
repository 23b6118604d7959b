package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// User belongs to exactly one company. Usernames are unique within a
// company, not globally.
type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Username     string         `json:"username" gorm:"type:varchar(64);not null;uniqueIndex:idx_users_company_username"`
	PasswordHash string         `json:"-" gorm:"type:text;not null"`
	Role         Role           `json:"role" gorm:"type:varchar(16);not null;default:'user'"`
	CompanyID    uint           `json:"company_id" gorm:"not null;uniqueIndex:idx_users_company_username"`
	Company      *Company       `json:"-" gorm:"foreignKey:CompanyID"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

type UserCreate struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	CompanyCode string `json:"company_code"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}
