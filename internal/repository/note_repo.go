package repository

import (
	"context"
	"errors"
	"fmt"

	"collabdesk/internal/models"

	"gorm.io/gorm"
)

var ErrNoteNotFound = errors.New("note not found")

// NoteRepositoryImpl handles note and note-line persistence using GORM.
// The collaboration gateway consumes this through its own interface.
type NoteRepositoryImpl struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepositoryImpl {
	return &NoteRepositoryImpl{db: db}
}

// Create inserts a note and its initial batch of blank lines in one
// transaction.
func (r *NoteRepositoryImpl) Create(ctx context.Context, companyID uint, title string, lineCount int) (*models.Note, error) {
	if title == "" {
		title = "Welcome"
	}
	if lineCount <= 0 {
		lineCount = 10
	}

	note := &models.Note{
		Title:     title,
		CompanyID: companyID,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(note).Error; err != nil {
			return err
		}
		lines := blankLines(note.ID, 0, lineCount)
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		return tx.Model(note).Update("line_count", lineCount).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	note.LineCount = lineCount
	return note, nil
}

// GetByID retrieves a note by id. Soft-deleted notes are excluded.
func (r *NoteRepositoryImpl) GetByID(ctx context.Context, id uint) (*models.Note, error) {
	var note models.Note

	err := r.db.WithContext(ctx).First(&note, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return &note, nil
}

// HasAccess reports whether the note belongs to the company with the given
// code. Used as the tenant gate before any room join.
func (r *NoteRepositoryImpl) HasAccess(ctx context.Context, noteID uint, companyCode string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&models.Note{}).
		Joins("JOIN companies ON companies.id = notes.company_id").
		Where("notes.id = ? AND companies.code = ?", noteID, companyCode).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check note access: %w", err)
	}

	return count > 0, nil
}

// LineCount returns the current number of lines in a note.
func (r *NoteRepositoryImpl) LineCount(ctx context.Context, noteID uint) (int, error) {
	note, err := r.GetByID(ctx, noteID)
	if err != nil {
		return 0, err
	}
	return note.LineCount, nil
}

// AppendLines appends n blank lines with dense sequential line numbers and
// bumps the note's line count, all in one transaction.
func (r *NoteRepositoryImpl) AppendLines(ctx context.Context, noteID uint, n int) ([]models.NoteLine, error) {
	var lines []models.NoteLine

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var note models.Note
		if err := tx.First(&note, "id = ?", noteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoteNotFound
			}
			return err
		}

		lines = blankLines(noteID, note.LineCount, n)
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}

		return tx.Model(&note).Update("line_count", note.LineCount+n).Error
	})
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to append lines: %w", err)
	}

	return lines, nil
}

// UpdateLine applies a partial update to a single line and stamps the
// editor. Returns the full post-update line state for broadcasting.
func (r *NoteRepositoryImpl) UpdateLine(ctx context.Context, noteID uint, patch *models.LinePatch, editorID uint) (*models.NoteLine, error) {
	var line models.NoteLine

	err := r.db.WithContext(ctx).
		First(&line, "note_id = ? AND line_number = ?", noteID, patch.LineNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find line: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&line).Updates(lineUpdates(patch, editorID)).Error; err != nil {
		return nil, fmt.Errorf("failed to update line: %w", err)
	}

	return &line, nil
}

// GetLines returns a page of lines ordered by line number.
func (r *NoteRepositoryImpl) GetLines(ctx context.Context, noteID uint, start, limit int) ([]models.NoteLine, error) {
	if limit <= 0 {
		limit = 100
	}

	var lines []models.NoteLine
	err := r.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("line_number ASC").
		Offset(start).
		Limit(limit).
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get lines: %w", err)
	}

	return lines, nil
}

// ListInfo returns the list-view projection of a company's notes.
func (r *NoteRepositoryImpl) ListInfo(ctx context.Context, companyID uint, limit, offset int) ([]models.NoteInfo, error) {
	if limit <= 0 {
		limit = 20
	}

	var infos []models.NoteInfo
	err := r.db.WithContext(ctx).
		Model(&models.Note{}).
		Select("id", "title", "line_count").
		Where("company_id = ?", companyID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Scan(&infos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	return infos, nil
}

// lineUpdates builds the update map for a line patch. A map so zero values
// ("" content, highlighted=false) are still applied when explicitly
// provided.
func lineUpdates(patch *models.LinePatch, editorID uint) map[string]interface{} {
	updates := map[string]interface{}{
		"last_edited_by_id": editorID,
	}
	if patch.Content != nil {
		updates["content"] = *patch.Content
	}
	if patch.Color != nil {
		updates["color"] = *patch.Color
	}
	if patch.FontSize != nil {
		updates["font_size"] = *patch.FontSize
	}
	if patch.Highlighted != nil {
		updates["highlighted"] = *patch.Highlighted
	}
	return updates
}

func blankLines(noteID uint, from, n int) []models.NoteLine {
	lines := make([]models.NoteLine, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, models.NoteLine{
			NoteID:     noteID,
			LineNumber: from + i + 1,
			Content:    "",
			Color:      models.DefaultLineColor,
			FontSize:   models.DefaultLineFontSize,
		})
	}
	return lines
}
