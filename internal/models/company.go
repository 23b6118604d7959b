package models

import (
	"time"

	"gorm.io/gorm"
)

// Company is the tenant boundary. Every other entity hangs off a company,
// and all realtime rooms are keyed by the company code.
type Company struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Code      string         `json:"code" gorm:"type:varchar(32);uniqueIndex;not null"`
	Name      string         `json:"name" gorm:"type:text;not null"`
	Users     []User         `json:"-" gorm:"foreignKey:CompanyID"`
	Notes     []Note         `json:"-" gorm:"foreignKey:CompanyID"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type CompanyCreate struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	ManagerUsername string `json:"manager_username"`
	ManagerPassword string `json:"manager_password"`
}
