package repositories

import (
	"dreamlog_backend/internal/models"

	"gorm.io/gorm"
)

type ChatRepository interface {
	Create(db *gorm.DB, msg *models.ChatMessage) error
	FindByUser(db *gorm.DB, userID string, limit int) ([]models.ChatMessage, error)
	FindRecent(db *gorm.DB, userID string, limit int) ([]models.ChatMessage, error)
}

type ChatRepositoryImpl struct{}

func NewChatRepository() ChatRepository {
	return &ChatRepositoryImpl{}
}

func (r *ChatRepositoryImpl) Create(db *gorm.DB, msg *models.ChatMessage) error {
	return db.Create(msg).Error
}

func (r *ChatRepositoryImpl) FindByUser(db *gorm.DB, userID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var messages []models.ChatMessage
	err := db.Where("user_id = ?", userID).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// FindRecent returns the newest messages in chronological order, for use as
// conversation context on the next AI call.
func (r *ChatRepositoryImpl) FindRecent(db *gorm.DB, userID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	var messages []models.ChatMessage
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
