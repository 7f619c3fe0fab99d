package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

// UserDTO is the account payload, flattened with its profile.
type UserDTO struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name"`
	IsStaff          bool      `json:"is_staff"`
	Phone            *string   `json:"phone,omitempty"`
	Address          *string   `json:"address,omitempty"`
	TelegramLinked   bool      `json:"telegram_linked"`
	TelegramChatID   *int64    `json:"telegram_chat_id,omitempty"`
	TelegramLinkCode *string   `json:"telegram_link_code,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	dto := &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsStaff:     u.IsStaff,
		CreatedAt:   u.CreatedAt,
	}
	if p := u.Profile; p != nil {
		dto.IsStaff = dto.IsStaff || p.IsAdmin
		dto.Phone = p.Phone
		dto.Address = p.Address
		dto.TelegramChatID = p.TelegramChatID
		dto.TelegramLinkCode = p.TelegramLinkCode
		dto.TelegramLinked = p.TelegramChatID != nil
	}
	return dto
}

// ProfileInput edits contact fields; nil leaves a field unchanged and an
// empty string clears it.
type ProfileInput struct {
	Phone   *string
	Address *string
}
