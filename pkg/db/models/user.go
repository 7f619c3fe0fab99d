package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a marketplace account. Profile is nil when the user never set one up.
type User struct {
	ID          uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	Email       string       `gorm:"column:email;not null;uniqueIndex"`
	DisplayName string       `gorm:"column:display_name;not null"`
	IsStaff     bool         `gorm:"column:is_staff;not null;default:false"`
	Profile     *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// CanManage reports whether the user may act on resources owned by ownerID.
func (u *User) CanManage(ownerID uuid.UUID) bool {
	if u == nil {
		return false
	}
	return u.IsStaff || u.ID == ownerID || (u.Profile != nil && u.Profile.IsAdmin)
}

// TelegramChatID returns the linked chat, if any.
func (u *User) TelegramChatID() (int64, bool) {
	if u == nil || u.Profile == nil || u.Profile.TelegramChatID == nil {
		return 0, false
	}
	return *u.Profile.TelegramChatID, true
}

// UserProfile holds optional contact data and the Telegram link.
type UserProfile struct {
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	TelegramChatID   *int64    `gorm:"column:telegram_chat_id"`
	TelegramLinkCode *string   `gorm:"column:telegram_link_code"`
	IsAdmin          bool      `gorm:"column:is_admin;not null;default:false"`
	Phone            *string   `gorm:"column:phone"`
	Address          *string   `gorm:"column:address"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
