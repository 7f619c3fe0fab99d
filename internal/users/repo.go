package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

// Repository exposes user and profile persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a user with the optional profile.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Profile").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByTelegramChat returns the user linked to chatID.
func (r *Repository) FindByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).First(&profile, "telegram_chat_id = ?", chatID).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, profile.UserID)
}

// SaveProfile inserts or fully overwrites the profile row.
func (r *Repository) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"telegram_chat_id", "telegram_link_code", "phone", "address", "updated_at",
			}),
		}).
		Create(profile).Error
}
