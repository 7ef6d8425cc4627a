package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrScheduleFailed is returned when a timer cannot be armed.
var ErrScheduleFailed = errors.New("schedule timer")

// Handle cancels a scheduled callback.
type Handle interface {
	// Stop prevents future firings. It reports whether the call stopped the
	// timer and is safe to call more than once.
	Stop() bool
}

// Scheduler arms timers.
type Scheduler interface {
	// After runs f once after d.
	After(d time.Duration, f func()) (Handle, error)
	// Every runs f every d until the handle is stopped.
	Every(d time.Duration, f func()) (Handle, error)
}

// Runtime schedules on the Go runtime timers.
type Runtime struct{}

// After runs f once after d on its own goroutine.
func (Runtime) After(d time.Duration, f func()) (Handle, error) {
	if d <= 0 || f == nil {
		return nil, fmt.Errorf("%w: one-shot delay %s", ErrScheduleFailed, d)
	}

	return time.AfterFunc(d, f), nil
}

// Every runs f every d on a dedicated goroutine.
// Firings never overlap: a slow f delays the next one.
func (Runtime) Every(d time.Duration, f func()) (Handle, error) {
	if d <= 0 || f == nil {
		return nil, fmt.Errorf("%w: repeat period %s", ErrScheduleFailed, d)
	}

	r := &repeater{
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}

	go r.loop(f)

	return r, nil
}

// repeater is a free-running ticker bound to one callback.
type repeater struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (r *repeater) loop(f func()) {
	defer r.ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C:
			// A stop racing with a tick wins.
			select {
			case <-r.stop:
				return
			default:
			}

			f()
		}
	}
}

// Stop ends the repeating loop.
func (r *repeater) Stop() bool {
	stopped := false

	r.once.Do(func() {
		close(r.stop)

		stopped = true
	})

	return stopped
}
