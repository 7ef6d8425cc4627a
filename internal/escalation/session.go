package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oshokin/posture-alarm/internal/domain/classification"
	"github.com/oshokin/posture-alarm/internal/logger"
	"github.com/oshokin/posture-alarm/internal/timer"
)

var (
	// ErrSessionClosed is returned by Submit after Run has returned.
	ErrSessionClosed = errors.New("session closed")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("session already running")
)

// Session runs one Machine on a single goroutine for the lifetime of a
// monitoring session.
type Session struct {
	machine   *Machine
	observers []Observer

	ticks  chan tick
	timers chan timerEvent
	// done is closed once Run has torn the machine down.
	done chan struct{}

	running  atomic.Bool
	snapshot atomic.Pointer[Snapshot]
}

// tick is an accepted feed result with its top class.
type tick struct {
	result *classification.Result
	top    int
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	scheduler timer.Scheduler
	audio     Audio
	notifier  Notifier
	observers []Observer
}

// WithScheduler replaces the runtime timers.
func WithScheduler(scheduler timer.Scheduler) Option {
	return func(o *sessionOptions) {
		if scheduler != nil {
			o.scheduler = scheduler
		}
	}
}

// WithAudio sets the alarm sound collaborator.
func WithAudio(audio Audio) Option {
	return func(o *sessionOptions) {
		if audio != nil {
			o.audio = audio
		}
	}
}

// WithNotifier sets the remote notification collaborator.
func WithNotifier(notifier Notifier) Option {
	return func(o *sessionOptions) {
		if notifier != nil {
			o.notifier = notifier
		}
	}
}

// WithObserver adds a snapshot observer.
func WithObserver(observer Observer) Option {
	return func(o *sessionOptions) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// NewSession creates a session in the Calm phase. Zero settings take defaults.
func NewSession(settings Settings, opts ...Option) *Session {
	o := &sessionOptions{
		scheduler: timer.Runtime{},
		audio:     nopAudio{},
		notifier:  nopNotifier{},
	}

	for _, opt := range opts {
		opt(o)
	}

	s := &Session{
		observers: o.observers,
		ticks:     make(chan tick),
		timers:    make(chan timerEvent),
		done:      make(chan struct{}),
	}

	s.machine = newMachine(settings.withDefaults(), o.scheduler, o.audio, o.notifier, s.deliver)
	s.publish(time.Now())

	return s
}

// Settings returns the effective settings.
func (s *Session) Settings() Settings {
	return s.machine.settings
}

// Snapshot returns the latest published state. Safe for concurrent use.
func (s *Session) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Submit validates a feed tick and hands it to the session goroutine.
// Malformed ticks are rejected with classification.ErrInvalidClassification
// and leave the machine untouched. Submit blocks until the tick is accepted
// by Run, ctx is done, or the session is closed.
func (s *Session) Submit(ctx context.Context, result *classification.Result) error {
	if err := result.Validate(s.machine.settings.Classes); err != nil {
		logger.WarnKV(ctx, "Rejected classification tick", "error", err)

		return err
	}

	top, err := classification.TopIndex(result)
	if err != nil {
		return err
	}

	select {
	case s.ticks <- tick{result: result.Clone(), top: top}:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return fmt.Errorf("submit tick: %w", ctx.Err())
	}
}

// Done is closed after Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run processes ticks and timer firings until ctx is done, then cancels all
// timers, stops the alarm and publishes a final Calm snapshot.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	defer close(s.done)

	logger.InfoKV(ctx, "Escalation session started",
		"debounce", s.machine.settings.Debounce.String(),
		"blink_period", s.machine.settings.BlinkPeriod.String(),
		"threshold", s.machine.settings.Threshold,
		"policy", string(s.machine.settings.Policy),
	)

	for {
		select {
		case <-ctx.Done():
			// Teardown must still log and stop audio after cancellation.
			teardownCtx := context.WithoutCancel(ctx)

			s.machine.teardown(teardownCtx)
			s.publish(time.Now())

			logger.Info(teardownCtx, "Escalation session stopped")

			return nil
		case t := <-s.ticks:
			before := s.machine.state.phase
			s.machine.observe(ctx, t.result, t.top)
			s.logTransition(ctx, before)
			s.publish(time.Now())
		case ev := <-s.timers:
			before := s.machine.state.phase
			if s.machine.handleTimer(ctx, ev) {
				s.logTransition(ctx, before)
				s.publish(time.Now())
			}
		}
	}
}

// deliver is called from timer goroutines.
func (s *Session) deliver(ev timerEvent) {
	select {
	case s.timers <- ev:
	case <-s.done:
	}
}

func (s *Session) logTransition(ctx context.Context, before Phase) {
	if after := s.machine.state.phase; after != before {
		logger.DebugKV(ctx, "Phase changed", "from", before.String(), "to", after.String())
	}
}

func (s *Session) publish(now time.Time) {
	snapshot := s.machine.snapshot(now)
	s.snapshot.Store(&snapshot)

	for _, o := range s.observers {
		o.Observe(snapshot)
	}
}
