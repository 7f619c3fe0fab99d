package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testRow struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	conn, err := Open(sqlite.Open(fmt.Sprintf("file:db_%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testRow{}))
	return Wrap(conn)
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testRow{Name: "committed"}).Error
	}))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testRow{Name: "rolled-back"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, client.DB().Model(&testRow{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := newTestClient(t)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&testRow{Name: "panic"})
			panic("kaboom")
		})
	})

	var count int64
	require.NoError(t, client.DB().Model(&testRow{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIsUniqueViolation(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.DB().Create(&testRow{Name: "dup"}).Error)
	err := client.DB().Create(&testRow{Name: "dup"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ""))

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_carts_user_id"})
	assert.True(t, IsUniqueViolation(pgErr, "ux_carts_user_id"))
	assert.False(t, IsUniqueViolation(pgErr, "other"))
	assert.False(t, IsUniqueViolation(errors.New("timeout"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsNotFound(t *testing.T) {
	client := newTestClient(t)
	err := client.DB().First(&testRow{}, "name = ?", "missing").Error
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}
