package repository

import (
	"context"
	"errors"
	"fmt"

	"collabdesk/internal/models"

	"gorm.io/gorm"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskRepositoryImpl handles task persistence using GORM
type TaskRepositoryImpl struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepositoryImpl {
	return &TaskRepositoryImpl{db: db}
}

// Create inserts a new task for a company.
func (r *TaskRepositoryImpl) Create(ctx context.Context, companyID uint, create *models.TaskCreate) (*models.Task, error) {
	task := &models.Task{
		Title:        create.Title,
		Description:  create.Description,
		DueDate:      create.DueDate,
		CompanyID:    companyID,
		AssignedToID: create.AssignedTo,
	}

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// GetByID retrieves a task, scoped to a company.
func (r *TaskRepositoryImpl) GetByID(ctx context.Context, companyID, id uint) (*models.Task, error) {
	var task models.Task

	err := r.db.WithContext(ctx).
		First(&task, "id = ? AND company_id = ?", id, companyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

// List returns a company's tasks with pagination.
func (r *TaskRepositoryImpl) List(ctx context.Context, companyID uint, limit, offset int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 50
	}

	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

// Update applies a partial update to a task.
func (r *TaskRepositoryImpl) Update(ctx context.Context, companyID, id uint, update *models.TaskUpdate) (*models.Task, error) {
	task, err := r.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Title != nil {
		updates["title"] = *update.Title
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.DueDate != nil {
		updates["due_date"] = *update.DueDate
	}
	if update.AssignedTo != nil {
		updates["assigned_to_id"] = *update.AssignedTo
	}
	if update.Completed != nil {
		updates["completed"] = *update.Completed
	}

	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update task: %w", err)
		}
	}

	return task, nil
}

// Delete soft-deletes a task.
func (r *TaskRepositoryImpl) Delete(ctx context.Context, companyID, id uint) error {
	result := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Delete(&models.Task{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
