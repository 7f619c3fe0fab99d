// Package dbtest builds throwaway sqlite databases with the full schema for
// package tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

// New returns a client over a private in-memory database. The pool is pinned to
// one connection so transactions and plain reads never contend for sqlite locks.
func New(t testing.TB) *db.Client {
	t.Helper()
	conn, err := db.Open(sqlite.Open("file:dbtest_" + uuid.NewString() + "?mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.Wrap(conn)
}

// UserOption tweaks a seeded user.
type UserOption func(*models.User)

// WithTelegram links a chat id through the user's profile.
func WithTelegram(chatID int64) UserOption {
	return func(u *models.User) {
		if u.Profile == nil {
			u.Profile = &models.UserProfile{}
		}
		u.Profile.TelegramChatID = &chatID
	}
}

// Staff marks the user as staff.
func Staff() UserOption {
	return func(u *models.User) { u.IsStaff = true }
}

func MustCreateUser(t testing.TB, conn *gorm.DB, opts ...UserOption) *models.User {
	t.Helper()
	id := uuid.New()
	user := &models.User{
		ID:          id,
		Email:       fmt.Sprintf("pescador_%s@example.com", id.String()[:8]),
		DisplayName: "Pescador " + id.String()[:4],
	}
	for _, opt := range opts {
		opt(user)
	}
	if user.Profile != nil {
		user.Profile.UserID = id
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// ProductSpec describes a seeded product; zero values get sensible defaults.
type ProductSpec struct {
	OwnerID  uuid.UUID
	Title    string
	Brand    string
	Price    string
	Stock    int
	Inactive bool
}

func MustCreateProduct(t testing.TB, conn *gorm.DB, spec ProductSpec) *models.Product {
	t.Helper()
	if spec.Title == "" {
		spec.Title = "Reel " + uuid.NewString()[:6]
	}
	if spec.Brand == "" {
		spec.Brand = "Shimano"
	}
	if spec.Price == "" {
		spec.Price = "10"
	}
	if spec.OwnerID == uuid.Nil {
		spec.OwnerID = uuid.New()
	}
	product := &models.Product{
		OwnerID:  spec.OwnerID,
		Title:    spec.Title,
		Brand:    spec.Brand,
		Price:    decimal.RequireFromString(spec.Price),
		Stock:    spec.Stock,
		IsActive: true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	if spec.Inactive {
		// is_active defaults to true, so a false bool is skipped on insert
		if err := conn.Model(product).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate product: %v", err)
		}
		product.IsActive = false
	}
	return product
}

// ReloadProduct fetches the current row for assertions.
func ReloadProduct(t testing.TB, conn *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product
}
