package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
)

const (
	MaxMessageLength = 500
	DefaultPageSize  = 50
	MaxPageSize      = 200
)

// MessageDTO is one chat line. Author falls back to "Anónimo" when the
// poster has no display name.
type MessageDTO struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is the shared shop chat. Clients poll with the last id they saw.
type Service interface {
	Post(ctx context.Context, userID uuid.UUID, text string) (*MessageDTO, error)
	ListAfter(ctx context.Context, afterID int64, limit int) ([]MessageDTO, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("chat repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Post(ctx context.Context, userID uuid.UUID, text string) (*MessageDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is empty").
			WithDetails(map[string]any{"field": "text"})
	}
	if len([]rune(text)) > MaxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message too long").
			WithDetails(map[string]any{"field": "text", "max": MaxMessageLength})
	}

	msg := &models.ChatMessage{UserID: userID, Text: text}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "post message")
	}
	dto := toDTO(*msg)
	return &dto, nil
}

func (s *service) ListAfter(ctx context.Context, afterID int64, limit int) ([]MessageDTO, error) {
	if afterID < 0 {
		afterID = 0
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	rows, err := s.repo.ListAfter(ctx, afterID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	out := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

func toDTO(m models.ChatMessage) MessageDTO {
	author := "Anónimo"
	if m.User != nil && strings.TrimSpace(m.User.DisplayName) != "" {
		author = m.User.DisplayName
	}
	return MessageDTO{
		ID:        m.ID,
		UserID:    m.UserID,
		Author:    author,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}
