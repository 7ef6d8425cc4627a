package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/posture-alarm/internal/logger"
)

// ErrQueueFull is logged when a notification is dropped.
var ErrQueueFull = errors.New("notification queue is full")

// job is one queued notification.
type job struct {
	id          string
	destination string
	message     string
	queuedAt    time.Time
}

// Dispatcher queues notifications for a single delivery worker.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	queue   chan job

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher with room for size pending notifications.
// Each delivery attempt is bounded by timeout when it is positive.
func NewDispatcher(sender Sender, size int, timeout time.Duration) *Dispatcher {
	if size <= 0 {
		size = 1
	}

	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		queue:   make(chan job, size),
	}
}

// Notify queues a notification and returns immediately.
// A full queue drops the notification.
func (d *Dispatcher) Notify(ctx context.Context, destination, message string) {
	j := job{
		id:          uuid.NewString(),
		destination: destination,
		message:     message,
		queuedAt:    time.Now(),
	}

	select {
	case d.queue <- j:
		logger.DebugKV(ctx, "Notification queued", "notification_id", j.id)
	default:
		d.dropped.Add(1)
		logger.ErrorKV(ctx, "Notification dropped", "notification_id", j.id, "error", ErrQueueFull)
	}
}

// Run delivers queued notifications until ctx is done.
// Whatever is still queued at that point is discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "dispatcher")

	for {
		if ctx.Err() != nil {
			d.discard(ctx)

			return nil
		}

		select {
		case <-ctx.Done():
			d.discard(ctx)

			return nil
		case j := <-d.queue:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) discard(ctx context.Context) {
	if discarded := d.drain(); discarded > 0 {
		logger.WarnKV(context.WithoutCancel(ctx), "Discarded undispatched notifications", "count", discarded)
	}
}

// Stats returns delivery counters: sent, failed and dropped.
func (d *Dispatcher) Stats() (sent, failed, dropped int64) {
	return d.sent.Load(), d.failed.Load(), d.dropped.Load()
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	callCtx, cancel := d.callContext(ctx)
	defer cancel()

	if err := d.sender.Send(callCtx, j.destination, j.message); err != nil {
		d.failed.Add(1)
		logger.ErrorKV(ctx, "Notification delivery failed", "notification_id", j.id, "error", err)

		return
	}

	d.sent.Add(1)
	logger.InfoKV(ctx, "Notification delivered",
		"notification_id", j.id,
		"destination", j.destination,
		"latency", time.Since(j.queuedAt).String(),
	)
}

func (d *Dispatcher) drain() int {
	discarded := 0

	for {
		select {
		case <-d.queue:
			discarded++
		default:
			return discarded
		}
	}
}

// callContext bounds one delivery attempt with the dispatcher timeout if set.
func (d *Dispatcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d.timeout)
}
