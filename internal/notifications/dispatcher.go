package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
	"github.com/mercadito-pesca/mercadito-backend/pkg/metrics"
)

var (
	// ErrQueueFull is returned by Submit when every worker is busy and the
	// queue has no room.
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("dispatcher closed")
)

const defaultSendTimeout = 30 * time.Second

// claimer marks (channel, event) pairs as delivered.
type claimer interface {
	Claim(ctx context.Context, scope string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, scope string, eventID uuid.UUID) error
}

type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type queuedJob struct {
	job    Job
	result chan Report
}

// Dispatcher fans jobs out to every notifier on a fixed set of workers.
type Dispatcher struct {
	notifiers   []Notifier
	claims      claimer
	metrics     *metrics.DispatchMetrics
	logg        *logger.Logger
	sendTimeout time.Duration

	queue  chan queuedJob
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher starts the workers. claims and m may be nil.
func NewDispatcher(opts DispatcherOptions, notifiers []Notifier, claims claimer, m *metrics.DispatchMetrics, logg *logger.Logger) (*Dispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive")
	}
	if opts.QueueSize < 0 {
		return nil, fmt.Errorf("queue size must not be negative")
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		notifiers:   notifiers,
		claims:      claims,
		metrics:     m,
		logg:        logg,
		sendTimeout: opts.SendTimeout,
		queue:       make(chan queuedJob, opts.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d, nil
}

// Submit enqueues job without blocking. The returned channel yields exactly
// one Report once every channel has been attempted.
func (d *Dispatcher) Submit(job Job) (<-chan Report, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	result := make(chan Report, 1)
	select {
	case d.queue <- queuedJob{job: job, result: result}:
		d.metrics.SetQueueDepth(len(d.queue))
		return result, nil
	default:
		d.metrics.IncRejected()
		return nil, ErrQueueFull
	}
}

// Dispatch submits job and waits for its report. It blocks on a full queue
// until ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) (Report, error) {
	for {
		result, err := d.Submit(job)
		if err == nil {
			select {
			case report := <-result:
				return report, nil
			case <-ctx.Done():
				return Report{}, ctx.Err()
			}
		}
		if !errors.Is(err, ErrQueueFull) {
			return Report{}, err
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return Report{}, ctx.Err()
		}
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, in-flight sends are canceled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for queued := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		queued.result <- d.run(queued.job)
		close(queued.result)
	}
}

func (d *Dispatcher) run(job Job) Report {
	report := Report{EventID: job.EventID, Channels: make(map[enums.NotificationChannel]Outcome, len(d.notifiers))}
	ctx := d.logg.WithFields(d.ctx, map[string]any{
		"event_id": job.EventID.String(),
		"job_kind": string(job.Kind),
		"user_id":  job.User.ID.String(),
	})
	for _, notifier := range d.notifiers {
		channel := notifier.Channel()
		start := time.Now()
		outcome := d.deliver(ctx, notifier, job)
		report.Channels[channel] = outcome
		d.metrics.ObserveSend(channel.String(), string(outcome), time.Since(start))
		if outcome == OutcomeFailed {
			d.logg.Warn(d.logg.WithField(ctx, "channel", channel.String()), "notification.delivery_failed")
		}
	}
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, notifier Notifier, job Job) Outcome {
	if !notifier.Reaches(job.User) {
		return OutcomeSkipped
	}
	scope := "notify:" + notifier.Channel().String()
	if d.claims != nil {
		claimed, err := d.claims.Claim(ctx, scope, job.EventID)
		if err != nil {
			// redis unavailable: send unclaimed
			d.logg.Error(ctx, "notification.claim_failed", err)
		} else if !claimed {
			return OutcomeDuplicate
		}
	}

	if d.send(ctx, notifier, job) {
		return OutcomeDelivered
	}
	if d.claims != nil {
		if err := d.claims.Release(ctx, scope, job.EventID); err != nil {
			d.logg.Error(ctx, "notification.release_failed", err)
		}
	}
	return OutcomeFailed
}

func (d *Dispatcher) send(ctx context.Context, notifier Notifier, job Job) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logg.Error(ctx, "notification.notifier_panic", fmt.Errorf("%v", r))
			ok = false
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	switch job.Kind {
	case JobOrder:
		return notifier.SendOrderUpdate(sendCtx, job.User, job.Order, job.Action)
	case JobQuote:
		return notifier.SendQuote(sendCtx, job.User, job.Quote, job.PDF)
	}
	return false
}

// Await waits up to timeout for a report. pending is true when the wait
// expired; the job keeps running in the background.
func Await(ctx context.Context, result <-chan Report, timeout time.Duration) (report Report, pending bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case report, ok := <-result:
		if !ok {
			return Report{}, true
		}
		return report, false
	case <-timer.C:
		return Report{}, true
	case <-ctx.Done():
		return Report{}, true
	}
}

// Submitter is the queueing side of a Dispatcher.
type Submitter interface {
	Submit(job Job) (<-chan Report, error)
}

// Summary is the caller-facing view of a dispatch. Pending is set when the
// wait expired or the job could not be queued; the outbox poller retries it.
type Summary struct {
	Channels map[enums.NotificationChannel]Outcome `json:"channels"`
	Pending  bool                                  `json:"pending"`
}

// SubmitAndWait queues job and waits up to wait for its report. A queueing
// error is returned alongside a pending summary.
func SubmitAndWait(ctx context.Context, submitter Submitter, job Job, wait time.Duration) (Report, Summary, error) {
	summary := Summary{Channels: map[enums.NotificationChannel]Outcome{}, Pending: true}
	result, err := submitter.Submit(job)
	if err != nil {
		return Report{}, summary, err
	}
	report, pending := Await(ctx, result, wait)
	if pending {
		return Report{}, summary, nil
	}
	summary.Channels = report.Channels
	summary.Pending = false
	return report, summary, nil
}
