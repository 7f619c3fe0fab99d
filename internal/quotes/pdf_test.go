package quotes

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

func sampleQuote() *models.Quote {
	quote := &models.Quote{
		ID:        uuid.New(),
		Notes:     "Retira en el local del puerto",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Items: []models.QuoteItem{
			{ProductTitle: "Caña telescópica 3.60m", Quantity: 1, UnitPrice: decimal.RequireFromString("54.90")},
			{ProductTitle: strings.Repeat("Señuelo paseante ", 6), Quantity: 3, UnitPrice: decimal.RequireFromString("7.50")},
		},
	}
	quote.Total = quote.ComputeTotal()
	return quote
}

func TestRenderQuoteProducesPDF(t *testing.T) {
	r := NewRenderer("")
	user := &models.User{DisplayName: "Ana Núñez", Email: "ana@example.com"}

	out, err := r.RenderQuote(sampleQuote(), user)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	require.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestRenderQuoteWithoutItemsOrUser(t *testing.T) {
	r := NewRenderer("Pesca Sur")
	out, err := r.RenderQuote(&models.Quote{ID: uuid.New(), CreatedAt: time.Now().UTC()}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	_, err = r.RenderQuote(nil, nil)
	require.Error(t, err)
}

func TestValidUntil(t *testing.T) {
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), validUntil(created))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "corto", truncate("corto", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
