package models

import (
	"time"

	"gorm.io/gorm"
)

// Default presentation attributes for freshly created lines.
const (
	DefaultLineColor    = "#000000"
	DefaultLineFontSize = 16
)

// Note is a paginated collaborative document owned by a company. LineCount
// only ever grows; the realtime gateway appends lines in batches as editors
// approach the end of the document.
type Note struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Title     string         `json:"title" gorm:"type:text;not null"`
	CompanyID uint           `json:"company_id" gorm:"not null;index"`
	Company   *Company       `json:"-" gorm:"foreignKey:CompanyID"`
	Lines     []NoteLine     `json:"-" gorm:"foreignKey:NoteID"`
	LineCount int            `json:"line_count" gorm:"not null;default:0"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// NoteLine is a single editable line. LineNumber is 1-based and dense within
// a note. LastEditedByID is a weak reference, never ownership.
type NoteLine struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	NoteID         uint           `json:"note_id" gorm:"not null;uniqueIndex:idx_note_lines_note_line"`
	LineNumber     int            `json:"line_number" gorm:"not null;uniqueIndex:idx_note_lines_note_line"`
	Content        string         `json:"content" gorm:"type:text;not null;default:''"`
	Color          string         `json:"color" gorm:"type:varchar(16);not null;default:'#000000'"`
	FontSize       int            `json:"font_size" gorm:"not null;default:16"`
	Highlighted    bool           `json:"highlighted" gorm:"not null;default:false"`
	LastEditedByID *uint          `json:"last_edited_by,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

type NoteCreate struct {
	Title     string `json:"title"`
	LineCount int    `json:"line_count"`
}

// NoteInfo is the list-view projection of a note.
type NoteInfo struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	LineCount int    `json:"line_count"`
}

// LinePatch is a partial update to a locked line. Nil fields are left
// untouched. LineNumber addresses the line; it is never mutated.
type LinePatch struct {
	LineNumber  int     `json:"line_number"`
	Content     *string `json:"content,omitempty"`
	Color       *string `json:"color,omitempty"`
	FontSize    *int    `json:"font_size,omitempty"`
	Highlighted *bool   `json:"highlighted,omitempty"`
}

// IsEmpty reports whether the patch carries no mutable fields.
func (p *LinePatch) IsEmpty() bool {
	return p.Content == nil && p.Color == nil && p.FontSize == nil && p.Highlighted == nil
}
