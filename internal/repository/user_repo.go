package repository

import (
	"context"
	"errors"
	"fmt"

	"collabdesk/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists in this company")
)

// UserRepositoryImpl handles user persistence using GORM
type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// Create inserts a new user into the given company. The password must
// already be hashed by the caller.
func (r *UserRepositoryImpl) Create(ctx context.Context, companyID uint, username, passwordHash string, role models.Role) (*models.User, error) {
	var existing int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("company_id = ? AND username = ?", companyID, username).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing > 0 {
		return nil, ErrUsernameExists
	}

	if role == "" {
		role = models.RoleUser
	}

	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CompanyID:    companyID,
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by id
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User

	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByUsername retrieves a user by username within a company.
func (r *UserRepositoryImpl) GetByUsername(ctx context.Context, companyCode, username string) (*models.User, error) {
	var user models.User

	err := r.db.WithContext(ctx).
		Joins("JOIN companies ON companies.id = users.company_id").
		Where("companies.code = ? AND users.username = ?", companyCode, username).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// List returns all users in a company.
func (r *UserRepositoryImpl) List(ctx context.Context, companyID uint, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 50
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}
