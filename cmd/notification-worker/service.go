package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/config"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

const (
	defaultBatchSize     = 25
	defaultPollInterval  = 2 * time.Second
	defaultMaxAttempts   = 8
	defaultHandleTimeout = 45 * time.Second
	maxBackoff           = 30 * time.Second
	jitterWindow         = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchPending(tx *gorm.DB, limit, maxAttempts int, olderThan time.Time) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	MarkFailed(tx *gorm.DB, id uuid.UUID, cause error) error
}

type eventHandler interface {
	Handle(ctx context.Context, event models.OutboxEvent) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pinger
	Repository outboxRepository
	Handler    eventHandler
}

// Service replays notification events the API did not confirm. Events
// younger than MinEventAge are left alone so the API's own dispatch can
// finish first.
type Service struct {
	logg         *logger.Logger
	db           pinger
	repo         outboxRepository
	handler      eventHandler
	batchSize    int
	maxAttempts  int
	minAge       time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Handler == nil {
		return nil, errors.New("event handler is required")
	}

	cfg := params.Config.Outbox
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	minAge := cfg.MinEventAge
	if minAge < 0 {
		minAge = 0
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		handler:      params.Handler,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		minAge:       minAge,
		pollInterval: poll,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "notification worker context canceled")
			return ctx.Err()
		default:
		}

		more, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "notification worker batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = s.pollInterval

		if more {
			continue
		}
		if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// processBatch handles one page of pending events. It reports true when the
// page was full and clean, meaning more work is likely waiting.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchPending(nil, s.batchSize, s.maxAttempts, s.now().Add(-s.minAge))
	if err != nil {
		return false, fmt.Errorf("fetch pending: %w", err)
	}

	failures := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		fields := eventFields(event)

		handleCtx, cancel := context.WithTimeout(ctx, defaultHandleTimeout)
		handleErr := s.handler.Handle(handleCtx, event)
		cancel()

		if handleErr != nil {
			failures++
			nextAttempt := event.AttemptCount + 1
			fields["attempt_count"] = nextAttempt
			logCtx := s.logg.WithFields(ctx, fields)
			logCtx = s.logg.WithField(logCtx, "error", handleErr.Error())
			if nextAttempt >= s.maxAttempts {
				s.logg.Warn(logCtx, "notification event will not be retried")
			} else {
				s.logg.Warn(logCtx, "notification delivery failed")
			}
			if err := s.repo.MarkFailed(nil, event.ID, handleErr); err != nil {
				return false, fmt.Errorf("mark failure %s: %w", event.ID, err)
			}
			continue
		}

		if err := s.repo.MarkPublished(nil, event.ID); err != nil {
			return false, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "notification event processed")
	}
	return len(events) == s.batchSize && failures == 0, nil
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType.String(),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
