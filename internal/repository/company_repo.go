package repository

import (
	"context"
	"errors"
	"fmt"

	"collabdesk/internal/models"

	"gorm.io/gorm"
)

var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrCompanyExists   = errors.New("company code already in use")
)

// CompanyRepositoryImpl handles tenant persistence using GORM
type CompanyRepositoryImpl struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepositoryImpl {
	return &CompanyRepositoryImpl{db: db}
}

// Create inserts a new company.
func (r *CompanyRepositoryImpl) Create(ctx context.Context, code, name string) (*models.Company, error) {
	var existing int64
	err := r.db.WithContext(ctx).
		Model(&models.Company{}).
		Where("code = ?", code).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check company code: %w", err)
	}
	if existing > 0 {
		return nil, ErrCompanyExists
	}

	company := &models.Company{Code: code, Name: name}
	if err := r.db.WithContext(ctx).Create(company).Error; err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	return company, nil
}

// GetByCode retrieves a company by its tenant code.
func (r *CompanyRepositoryImpl) GetByCode(ctx context.Context, code string) (*models.Company, error) {
	var company models.Company

	err := r.db.WithContext(ctx).First(&company, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}
