package repository

import (
	"context"
	"fmt"

	"collabdesk/internal/models"

	"gorm.io/gorm"
)

// OperationRepositoryImpl handles the append-only audit history table
type OperationRepositoryImpl struct {
	db *gorm.DB
}

func NewOperationRepository(db *gorm.DB) *OperationRepositoryImpl {
	return &OperationRepositoryImpl{db: db}
}

// Record appends one operation to the history.
func (r *OperationRepositoryImpl) Record(ctx context.Context, op *models.Operation) error {
	if err := r.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// ListByCompany returns a company's history, newest first.
func (r *OperationRepositoryImpl) ListByCompany(ctx context.Context, companyID uint, limit, offset int) ([]models.Operation, error) {
	if limit <= 0 {
		limit = 50
	}

	var ops []models.Operation
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("date DESC").
		Limit(limit).
		Offset(offset).
		Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	return ops, nil
}
