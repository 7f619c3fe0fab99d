package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

const (
	maxPhoneLength   = 32
	maxAddressLength = 300
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the caller's profile and Telegram link.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) (*UserDTO, error)
	LinkTelegram(ctx context.Context, id uuid.UUID, chatID int64) (*UserDTO, error)
	UnlinkTelegram(ctx context.Context, id uuid.UUID) (*UserDTO, error)
}

type service struct {
	repo *Repository
	tx   txRunner
	logg *logger.Logger
}

func NewService(repo *Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) (*UserDTO, error) {
	phone, err := normalizeOptional(input.Phone, "phone", maxPhoneLength)
	if err != nil {
		return nil, err
	}
	address, err := normalizeOptional(input.Address, "address", maxAddressLength)
	if err != nil {
		return nil, err
	}

	return s.mutateProfile(ctx, id, func(_ *Repository, p *models.UserProfile) error {
		if input.Phone != nil {
			p.Phone = phone
		}
		if input.Address != nil {
			p.Address = address
		}
		return nil
	})
}

// LinkTelegram stores the chat id and the link code the bot shows in that
// chat. A chat can only be linked to one account.
func (s *service) LinkTelegram(ctx context.Context, id uuid.UUID, chatID int64) (*UserDTO, error) {
	if chatID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chat_id is required").
			WithDetails(map[string]any{"field": "chat_id"})
	}

	dto, err := s.mutateProfile(ctx, id, func(repo *Repository, p *models.UserProfile) error {
		owner, err := repo.FindByTelegramChat(ctx, chatID)
		switch {
		case err == nil && owner.ID != id:
			return pkgerrors.New(pkgerrors.CodeConflict, "telegram chat already linked to another account")
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		code := LinkCode(chatID)
		p.TelegramChatID = &chatID
		p.TelegramLinkCode = &code
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": id.String(), "chat_id": chatID}), "users.telegram_linked")
	return dto, nil
}

func (s *service) UnlinkTelegram(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	return s.mutateProfile(ctx, id, func(_ *Repository, p *models.UserProfile) error {
		p.TelegramChatID = nil
		p.TelegramLinkCode = nil
		return nil
	})
}

// LinkCode is "TG" followed by the last six digits of the chat id.
func LinkCode(chatID int64) string {
	digits := strconv.FormatInt(chatID, 10)
	digits = strings.TrimPrefix(digits, "-")
	if len(digits) > 6 {
		digits = digits[len(digits)-6:]
	}
	return "TG" + digits
}

func (s *service) mutateProfile(ctx context.Context, id uuid.UUID, mutate func(*Repository, *models.UserProfile) error) (*UserDTO, error) {
	var user *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		profile := loaded.Profile
		if profile == nil {
			profile = &models.UserProfile{UserID: id}
		}
		if err := mutate(repo, profile); err != nil {
			return err
		}
		if err := repo.SaveProfile(ctx, profile); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save profile")
		}
		loaded.Profile = profile
		user = loaded
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return FromModel(user), nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func normalizeOptional(value *string, field string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) > max {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" too long").
			WithDetails(map[string]any{"field": field, "max": max})
	}
	return &trimmed, nil
}
