package repository

import (
	"context"
	"errors"
	"fmt"

	"collabdesk/internal/models"

	"gorm.io/gorm"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepositoryImpl handles chat room and message persistence using GORM
type ChatRepositoryImpl struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepositoryImpl {
	return &ChatRepositoryImpl{db: db}
}

// Create inserts a new chat room for a company.
func (r *ChatRepositoryImpl) Create(ctx context.Context, companyID uint, name string) (*models.Chat, error) {
	chat := &models.Chat{Name: name, CompanyID: companyID}

	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	return chat, nil
}

// List returns a company's chat rooms.
func (r *ChatRepositoryImpl) List(ctx context.Context, companyID uint) ([]models.Chat, error) {
	var chats []models.Chat

	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id ASC").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	return chats, nil
}

// HasAccess reports whether the chat belongs to the company with the given
// code.
func (r *ChatRepositoryImpl) HasAccess(ctx context.Context, chatID uint, companyCode string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&models.Chat{}).
		Joins("JOIN companies ON companies.id = chats.company_id").
		Where("chats.id = ? AND companies.code = ?", chatID, companyCode).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check chat access: %w", err)
	}

	return count > 0, nil
}

// SaveMessage persists a chat message.
func (r *ChatRepositoryImpl) SaveMessage(ctx context.Context, chatID, senderID uint, content string) (*models.Message, error) {
	var exists int64
	err := r.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", chatID).
		Count(&exists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check chat: %w", err)
	}
	if exists == 0 {
		return nil, ErrChatNotFound
	}

	message := &models.Message{
		Content:  content,
		SenderID: senderID,
		ChatID:   chatID,
	}
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return message, nil
}

// ListMessages returns a chat's message history, newest last.
func (r *ChatRepositoryImpl) ListMessages(ctx context.Context, chatID uint, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}
