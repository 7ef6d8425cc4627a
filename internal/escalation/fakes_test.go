package escalation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/posture-alarm/internal/domain/classification"
	"github.com/oshokin/posture-alarm/internal/timer"
)

var errTestSchedule = errors.New("test schedule failure")

// fakeAudio records PlayLoop and Stop calls.
type fakeAudio struct {
	mu      sync.Mutex
	plays   int
	stops   int
	playing bool
}

func (a *fakeAudio) PlayLoop(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.playing {
		a.plays++
		a.playing = true
	}

	return nil
}

func (a *fakeAudio) Stop(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stops++
	a.playing = false

	return nil
}

func (a *fakeAudio) counts() (plays, stops int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.plays, a.stops
}

// notification is a single recorded Notify call.
type notification struct {
	destination string
	message     string
}

// fakeNotifier records Notify calls.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(_ context.Context, destination, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, notification{destination: destination, message: message})
}

func (n *fakeNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]notification(nil), n.sent...)
}

// flakyScheduler fails the first afterFailures After calls and the first
// everyFailures Every calls, then defers to the runtime.
type flakyScheduler struct {
	mu            sync.Mutex
	afterFailures int
	everyFailures int
}

func (f *flakyScheduler) After(d time.Duration, fn func()) (timer.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.afterFailures > 0 {
		f.afterFailures--

		return nil, errTestSchedule
	}

	return timer.Runtime{}.After(d, fn)
}

func (f *flakyScheduler) Every(d time.Duration, fn func()) (timer.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.everyFailures > 0 {
		f.everyFailures--

		return nil, errTestSchedule
	}

	return timer.Runtime{}.Every(d, fn)
}

// manualHandle is a timer the test fires by hand.
type manualHandle struct {
	fn      func()
	stopped atomic.Bool
}

func (h *manualHandle) Stop() bool {
	return h.stopped.CompareAndSwap(false, true)
}

// manualScheduler hands every callback to the test instead of a clock.
// Fired callbacks still run after Stop to mimic a firing already in flight.
type manualScheduler struct {
	mu     sync.Mutex
	after  []*manualHandle
	repeat []*manualHandle
}

func (m *manualScheduler) After(_ time.Duration, fn func()) (timer.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := &manualHandle{fn: fn}
	m.after = append(m.after, h)

	return h, nil
}

func (m *manualScheduler) Every(_ time.Duration, fn func()) (timer.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := &manualHandle{fn: fn}
	m.repeat = append(m.repeat, h)

	return h, nil
}

func (m *manualScheduler) lastAfter() *manualHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.after[len(m.after)-1]
}

func (m *manualScheduler) lastRepeat() *manualHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.repeat[len(m.repeat)-1]
}

// harness runs a Session inside a synctest bubble.
type harness struct {
	session  *Session
	audio    *fakeAudio
	notifier *fakeNotifier
	cancel   context.CancelFunc
	done     chan error
}

// testSettings are the reference defaults with a destination set.
func testSettings() Settings {
	return Settings{
		Classes:     4,
		Debounce:    3 * time.Second,
		BlinkPeriod: 200 * time.Millisecond,
		Threshold:   3,
		Destination: "5512345678",
		Message:     "Ana keeps getting distracted.",
	}
}

// start must be called inside synctest.Test.
func start(t *testing.T, settings Settings, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		audio:    new(fakeAudio),
		notifier: new(fakeNotifier),
		done:     make(chan error, 1),
	}

	opts = append([]Option{WithAudio(h.audio), WithNotifier(h.notifier)}, opts...)
	h.session = NewSession(settings, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	go func() {
		h.done <- h.session.Run(ctx)
	}()

	synctest.Wait()

	return h
}

// tick submits a four-class result whose top class is top and waits for it to be processed.
func (h *harness) tick(t *testing.T, top int) {
	t.Helper()

	require.NoError(t, h.session.Submit(context.Background(), resultWithTop(top, 4)))
	synctest.Wait()
}

// advance moves the fake clock and lets timer callbacks settle.
func (h *harness) advance(d time.Duration) {
	time.Sleep(d)
	synctest.Wait()
}

func (h *harness) stop(t *testing.T) {
	t.Helper()

	h.cancel()
	require.NoError(t, <-h.done)
}

func resultWithTop(top, n int) *classification.Result {
	r := &classification.Result{Predictions: make([]classification.Prediction, n)}
	for i := range r.Predictions {
		r.Predictions[i] = classification.Prediction{Label: "class", Confidence: 0.1}
	}

	r.Predictions[top].Confidence = 0.7

	return r
}
