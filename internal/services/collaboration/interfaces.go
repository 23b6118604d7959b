package collaboration

import (
	"context"

	"collabdesk/internal/models"
	"collabdesk/internal/services"
)

// NoteStore is the slice of the document store the note gateway consumes.
// The gateway never creates or deletes documents, it only reads, appends to
// and mutates them.
type NoteStore interface {
	HasAccess(ctx context.Context, noteID uint, companyCode string) (bool, error)
	LineCount(ctx context.Context, noteID uint) (int, error)
	AppendLines(ctx context.Context, noteID uint, n int) ([]models.NoteLine, error)
	UpdateLine(ctx context.Context, noteID uint, patch *models.LinePatch, editorID uint) (*models.NoteLine, error)
}

// ChatStore is the slice of chat persistence the chat gateway consumes.
type ChatStore interface {
	HasAccess(ctx context.Context, chatID uint, companyCode string) (bool, error)
	SaveMessage(ctx context.Context, chatID, senderID uint, content string) (*models.Message, error)
}

// CompanyResolver resolves a tenant code to its company record.
type CompanyResolver interface {
	GetByCode(ctx context.Context, code string) (*models.Company, error)
}

// HistorySink consumes completed mutations for the audit log.
type HistorySink interface {
	Record(job services.HistoryJob)
}
