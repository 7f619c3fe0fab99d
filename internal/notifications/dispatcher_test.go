package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

type stubNotifier struct {
	channel enums.NotificationChannel
	reaches bool
	ok      bool
	block   chan struct{}
	panics  bool

	mu      sync.Mutex
	orders  []string
	quotes  int
	pdfSeen []byte
}

func (s *stubNotifier) Channel() enums.NotificationChannel { return s.channel }

func (s *stubNotifier) Reaches(*models.User) bool { return s.reaches }

func (s *stubNotifier) SendOrderUpdate(_ context.Context, _ *models.User, _ *models.Order, action string) bool {
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, action)
	return s.ok
}

func (s *stubNotifier) SendQuote(_ context.Context, _ *models.User, _ *models.Quote, pdf []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes++
	s.pdfSeen = pdf
	return s.ok
}

func (s *stubNotifier) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders) + s.quotes
}

type memoryClaims struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryClaims() *memoryClaims {
	return &memoryClaims{keys: map[string]bool{}}
}

func (m *memoryClaims) Claim(_ context.Context, scope string, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope + ":" + id.String()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryClaims) Release(_ context.Context, scope string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, scope+":"+id.String())
	return nil
}

func orderJob() Job {
	return Job{
		EventID: uuid.New(),
		Kind:    JobOrder,
		User:    &models.User{ID: uuid.New(), Email: "ana@example.com", DisplayName: "Ana"},
		Order:   &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending, Total: decimal.NewFromInt(45)},
		Action:  ActionCreated,
	}
}

func newTestDispatcher(t *testing.T, opts DispatcherOptions, claims claimer, notifiers ...Notifier) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(opts, notifiers, claims, nil, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	return d
}

func TestDispatcherReportsEveryChannel(t *testing.T) {
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: true}
	telegram := &stubNotifier{channel: enums.ChannelTelegram, reaches: false, ok: true}
	d := newTestDispatcher(t, DispatcherOptions{Workers: 2, QueueSize: 4}, nil, email, telegram)

	result, err := d.Submit(orderJob())
	require.NoError(t, err)
	report, pending := Await(context.Background(), result, time.Second)
	require.False(t, pending)

	require.Equal(t, OutcomeDelivered, report.Channels[enums.ChannelEmail])
	require.Equal(t, OutcomeSkipped, report.Channels[enums.ChannelTelegram])
	require.True(t, report.AnyDelivered())
	require.Empty(t, report.Failed())
	require.Equal(t, 0, telegram.sent())
}

func TestDispatcherFailureDoesNotBlockOtherChannels(t *testing.T) {
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: false}
	telegram := &stubNotifier{channel: enums.ChannelTelegram, reaches: true, panics: true}
	d := newTestDispatcher(t, DispatcherOptions{Workers: 1, QueueSize: 1}, nil, email, telegram)

	report, err := d.Dispatch(context.Background(), orderJob())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, report.Channels[enums.ChannelEmail])
	require.Equal(t, OutcomeFailed, report.Channels[enums.ChannelTelegram])
	require.False(t, report.AnyDelivered())
	require.Len(t, report.Failed(), 2)
}

func TestDispatcherSkipsChannelsAlreadyDelivered(t *testing.T) {
	claims := newMemoryClaims()
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: true}
	telegram := &stubNotifier{channel: enums.ChannelTelegram, reaches: true, ok: false}
	d := newTestDispatcher(t, DispatcherOptions{Workers: 1, QueueSize: 2}, claims, email, telegram)
	job := orderJob()

	first, err := d.Dispatch(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, OutcomeDelivered, first.Channels[enums.ChannelEmail])
	require.Equal(t, OutcomeFailed, first.Channels[enums.ChannelTelegram])

	telegram.mu.Lock()
	telegram.ok = true
	telegram.mu.Unlock()

	second, err := d.Dispatch(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, second.Channels[enums.ChannelEmail])
	require.Equal(t, OutcomeDelivered, second.Channels[enums.ChannelTelegram])
	require.Equal(t, 1, email.sent())
	require.True(t, second.Delivered(enums.ChannelEmail))
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: true, block: block}
	d := newTestDispatcher(t, DispatcherOptions{Workers: 1, QueueSize: 1}, nil, email)

	first, err := d.Submit(orderJob())
	require.NoError(t, err)
	// wait until the worker holds the first job so the queue slot is free
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, 5*time.Millisecond)
	_, err = d.Submit(orderJob())
	require.NoError(t, err)
	_, err = d.Submit(orderJob())
	require.ErrorIs(t, err, ErrQueueFull)

	_, pending := Await(context.Background(), first, 20*time.Millisecond)
	require.True(t, pending)

	close(block)
	report, pending := Await(context.Background(), first, time.Second)
	require.False(t, pending)
	require.Equal(t, OutcomeDelivered, report.Channels[enums.ChannelEmail])
}

func TestDispatcherShutdownDrainsQueue(t *testing.T) {
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: true}
	d, err := NewDispatcher(DispatcherOptions{Workers: 1, QueueSize: 8}, []Notifier{email}, nil, nil, logger.Nop())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := d.Submit(orderJob())
		require.NoError(t, err)
	}
	require.NoError(t, d.Shutdown(context.Background()))
	require.Equal(t, 5, email.sent())

	_, err = d.Submit(orderJob())
	require.ErrorIs(t, err, ErrClosed)
}

func TestSubmitValidatesJob(t *testing.T) {
	d := newTestDispatcher(t, DispatcherOptions{Workers: 1}, nil)
	_, err := d.Submit(Job{Kind: JobOrder})
	require.Error(t, err)

	job := orderJob()
	job.Kind = JobQuote
	_, err = d.Submit(job)
	require.Error(t, err)
}

func TestNewDispatcherValidatesOptions(t *testing.T) {
	_, err := NewDispatcher(DispatcherOptions{Workers: 0}, nil, nil, nil, logger.Nop())
	require.Error(t, err)
	_, err = NewDispatcher(DispatcherOptions{Workers: 1}, nil, nil, nil, nil)
	require.Error(t, err)
}
