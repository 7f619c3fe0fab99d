package chat

import (
	"context"

	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListAfter returns messages with id greater than afterID, oldest first.
func (r *Repository) ListAfter(ctx context.Context, afterID int64, limit int) ([]models.ChatMessage, error) {
	var rows []models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
