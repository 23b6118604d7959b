package services

import (
	"context"

	"collabdesk/internal/models"
)

// OperationRepository defines what the history service needs from storage.
// The interface lives here, with the consumer, not with the implementation.
type OperationRepository interface {
	Record(ctx context.Context, op *models.Operation) error
}
