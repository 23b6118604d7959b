package models

import (
	"time"

	"gorm.io/gorm"
)

type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

type TargetType string

const (
	TargetUser     TargetType = "user"
	TargetNote     TargetType = "note"
	TargetNoteLine TargetType = "note_line"
	TargetTask     TargetType = "task"
	TargetChat     TargetType = "chat"
)

// Operation is one entry in the audit history: a completed mutation with a
// JSON snapshot of the resulting state. Rows are append-only.
type Operation struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Type          OperationType  `json:"type" gorm:"type:varchar(16);not null"`
	TargetType    TargetType     `json:"target_type" gorm:"type:varchar(16);not null"`
	TargetID      uint           `json:"target_id" gorm:"not null"`
	Description   string         `json:"description" gorm:"type:text;not null"`
	PerformedByID uint           `json:"performed_by" gorm:"not null"`
	PerformedBy   *User          `json:"-" gorm:"foreignKey:PerformedByID"`
	CompanyID     uint           `json:"company_id" gorm:"not null;index"`
	Date          time.Time      `json:"date" gorm:"not null"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
