package models

import (
	"time"

	"gorm.io/gorm"
)

// Task is a company-scoped todo item, optionally assigned to a user.
type Task struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Title        string         `json:"title" gorm:"type:text;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	DueDate      *time.Time     `json:"due_date,omitempty"`
	CompanyID    uint           `json:"company_id" gorm:"not null;index"`
	AssignedToID *uint          `json:"assigned_to,omitempty"`
	AssignedTo   *User          `json:"-" gorm:"foreignKey:AssignedToID"`
	Completed    bool           `json:"completed" gorm:"not null;default:false"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

type TaskCreate struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  *uint      `json:"assigned_to,omitempty"`
}

type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  *uint      `json:"assigned_to,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}
