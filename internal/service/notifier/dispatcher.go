package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
)

const (
	defaultCountWorkers = 4
	defaultQueueSize    = 128
	defaultMaxAttempts  = 3
)

var ErrQueueFull = errors.New("notification queue is full")

type sender interface {
	Send(ctx context.Context, m Message) error
}

type Config struct {
	// Number of workers delivering messages
	CountWorkers int

	// Messages waiting for delivery, enqueue fails when the queue is full
	QueueSize int

	// Delivery attempts per message, only throttled deliveries are retried
	MaxAttempts int
}

type job struct {
	msg     Message
	attempt int
}

// Dispatcher delivers verification messages in background
// Messages queued before Run are delivered once it started
type Dispatcher struct {
	countWorkers int
	maxAttempts  int
	queue        chan job

	// Sender may ask to slow down
	// If so workers wait until the time is up
	waitUntil atomic.Int64

	sender sender
	logger logger.Logger
}

func NewDispatcher(cfg Config, s sender, l logger.Logger) *Dispatcher {
	if cfg.CountWorkers <= 0 {
		cfg.CountWorkers = defaultCountWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	return &Dispatcher{
		countWorkers: cfg.CountWorkers,
		maxAttempts:  cfg.MaxAttempts,
		queue:        make(chan job, cfg.QueueSize),
		sender:       s,
		logger:       l,
	}
}

// NotifyEmailVerification queues message and returns without waiting for delivery
func (d *Dispatcher) NotifyEmailVerification(ctx context.Context, user models.User, token string) error {
	j := job{msg: Message{UserID: user.ID, Email: user.Email, Token: token}, attempt: 1}

	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case d.queue <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts workers, returned channel is closed when all of them stopped
// Workers stop when ctx is done, undelivered messages are dropped
func (d *Dispatcher) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range d.countWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		d.logger.Debug("Dispatcher stopped", "dropped", len(d.queue))
	}()

	return idleStopped
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		// Wait until throttling is over or context is done
		waitUntil := time.Unix(0, d.waitUntil.Load())
		if waitUntil.After(time.Now()) {
			d.logger.Debug("Worker is waiting for throttling to reset", "wait_until", waitUntil)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(waitUntil)):
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	err := d.sender.Send(ctx, j.msg)

	var sendErr *Error
	switch {
	case err == nil:
		return

	case errors.As(err, &sendErr) && sendErr.Code == CodeRetryAfter:
		d.waitUntil.Store(time.Now().Add(sendErr.RetryAfter).UnixNano())

		if j.attempt >= d.maxAttempts {
			d.logger.Error("Verification message dropped, attempts exceeded", "user_id", j.msg.UserID, "attempts", j.attempt)
			return
		}

		j.attempt++
		select {
		case d.queue <- j:
		default:
			d.logger.Error("Verification message dropped, queue is full", "user_id", j.msg.UserID)
		}

	default:
		d.logger.Error("Verification message not delivered", "user_id", j.msg.UserID, "error", err)
	}
}
