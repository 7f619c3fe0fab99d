package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

// UserBehavior is an append-only interaction log row. Repeat views of a
// product bump Views and TimeOnPage on the existing row.
type UserBehavior struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index:ix_user_behaviors_user_action"`
	ProductID  *uuid.UUID           `gorm:"column:product_id;type:uuid;index"`
	Action     enums.BehaviorAction `gorm:"column:action;type:text;not null;index:ix_user_behaviors_user_action"`
	TimeOnPage int                  `gorm:"column:time_on_page;not null;default:0"`
	Views      int                  `gorm:"column:views;not null;default:1"`
	Query      string               `gorm:"column:query;not null;default:''"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime;index"`
}

func (b *UserBehavior) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// PriceComparison is a point-in-time same-brand market snapshot. Nil IsDeal
// means no peers existed at refresh time.
type PriceComparison struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID           `gorm:"column:product_id;type:uuid;not null;uniqueIndex"`
	PeerCount   int                 `gorm:"column:peer_count;not null;default:0"`
	AvgPrice    decimal.NullDecimal `gorm:"column:avg_price;type:numeric(12,2)"`
	MinPrice    decimal.NullDecimal `gorm:"column:min_price;type:numeric(12,2)"`
	MaxPrice    decimal.NullDecimal `gorm:"column:max_price;type:numeric(12,2)"`
	IsDeal      *bool               `gorm:"column:is_deal"`
	SavingsPct  decimal.Decimal     `gorm:"column:savings_pct;type:numeric(6,2);not null;default:0"`
	RefreshedAt time.Time           `gorm:"column:refreshed_at;not null"`
}

func (p *PriceComparison) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// CartIntentScore stores the last computed purchase-intent score per user.
type CartIntentScore struct {
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Score      float64   `gorm:"column:score;not null"`
	Behaviors  int       `gorm:"column:behaviors;not null;default:0"`
	ComputedAt time.Time `gorm:"column:computed_at;not null"`
}

// ChatMessage is a line in the shared shop chat.
type ChatMessage struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Text      string    `gorm:"column:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
