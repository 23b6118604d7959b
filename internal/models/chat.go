package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat is a company-scoped message room.
type Chat struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:text;not null"`
	Type      string         `json:"type" gorm:"type:varchar(16);not null;default:'public'"`
	CompanyID uint           `json:"company_id" gorm:"not null;index"`
	Messages  []Message      `json:"-" gorm:"foreignKey:ChatID"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Message is a single chat message. Messages get a UUID so clients can
// dedupe optimistic sends against the broadcast echo.
type Message struct {
	ID        string         `json:"id" gorm:"type:char(36);primaryKey"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	SenderID  uint           `json:"sender_id" gorm:"not null"`
	Sender    *User          `json:"-" gorm:"foreignKey:SenderID"`
	ChatID    uint           `json:"chat_id" gorm:"not null;index"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
