package escalation

import (
	"context"
	"time"

	"github.com/oshokin/posture-alarm/internal/domain/classification"
)

// Phase is the escalation state.
type Phase int

// Phases of the state machine.
const (
	// PhaseCalm means the subject is alert or recovered.
	PhaseCalm Phase = iota
	// PhasePending means a relapse is suspected and the debounce timer runs.
	PhasePending
	// PhaseAlarming means the relapse is confirmed and the alarm is active.
	PhaseAlarming
)

// String returns the lower-case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseCalm:
		return "calm"
	case PhasePending:
		return "pending"
	case PhaseAlarming:
		return "alarming"
	default:
		return "unknown"
	}
}

// Color is the visual alarm color exposed to renderers.
type Color int

// Colors of the visual alarm.
const (
	ColorNeutral Color = iota
	ColorAlert
)

// String returns the lower-case color name.
func (c Color) String() string {
	if c == ColorAlert {
		return "alert"
	}

	return "neutral"
}

// Policy controls what recovery does to the relapse counter.
type Policy string

// Escalation policies.
const (
	// PolicyResetOnRecovery resets the counter on every return to Calm.
	PolicyResetOnRecovery Policy = "reset_on_recovery"
	// PolicyCarryOver keeps the counter across recoveries, so the threshold
	// counts confirmed relapses over the whole session.
	PolicyCarryOver Policy = "carry_over"
)

// Default settings.
const (
	DefaultDebounce    = 3 * time.Second
	DefaultBlinkPeriod = 200 * time.Millisecond
	DefaultThreshold   = 3
)

// Settings configure a Machine.
type Settings struct {
	// Classes is the expected number of classes per tick. Zero accepts any non-empty tick.
	Classes int
	// Debounce is how long a relapse must persist before the alarm starts.
	Debounce time.Duration
	// BlinkPeriod is the visual alarm toggle interval.
	BlinkPeriod time.Duration
	// Threshold is the number of confirmed relapses per notification.
	Threshold int
	// Policy decides whether recovery resets the counter.
	Policy Policy
	// Destination receives the notification.
	Destination string
	// Message is the notification text.
	Message string
}

// withDefaults fills zero values.
func (s Settings) withDefaults() Settings {
	if s.Debounce <= 0 {
		s.Debounce = DefaultDebounce
	}

	if s.BlinkPeriod <= 0 {
		s.BlinkPeriod = DefaultBlinkPeriod
	}

	if s.Threshold <= 0 {
		s.Threshold = DefaultThreshold
	}

	if s.Policy == "" {
		s.Policy = PolicyResetOnRecovery
	}

	return s
}

// Audio plays the alarm sound.
type Audio interface {
	// PlayLoop starts the looping alarm. Calling it while playing is a no-op.
	PlayLoop(ctx context.Context) error
	// Stop silences the alarm and rewinds it to the start.
	Stop(ctx context.Context) error
}

// Notifier sends remote notifications. Implementations must not block and
// must handle delivery failures themselves.
type Notifier interface {
	Notify(ctx context.Context, destination, message string)
}

// Observer receives a snapshot after every processed tick or timer firing.
// It runs on the session goroutine and must return quickly.
type Observer interface {
	Observe(snapshot Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

// Observe calls f.
func (f ObserverFunc) Observe(snapshot Snapshot) {
	f(snapshot)
}

// Snapshot is a read-only view of the escalation state.
type Snapshot struct {
	// Phase is the current phase.
	Phase Phase
	// RelapseCount is the number of relapses left before a notification.
	RelapseCount int
	// Color is the visual alarm color.
	Color Color
	// DebounceArmed reports whether the debounce timer is armed.
	DebounceArmed bool
	// BlinkArmed reports whether the blink loop is armed.
	BlinkArmed bool
	// TopIndex is the top class of the last accepted tick.
	TopIndex int
	// Result is the last accepted tick, nil before the first one.
	Result *classification.Result
	// Relapses counts confirmed relapses in this session.
	Relapses int
	// Notifications counts notifications handed to the notifier.
	Notifications int
	// UpdatedAt is when the snapshot was taken.
	UpdatedAt time.Time
}

// nopAudio is used when no audio collaborator is configured.
type nopAudio struct{}

func (nopAudio) PlayLoop(context.Context) error { return nil }
func (nopAudio) Stop(context.Context) error     { return nil }

// nopNotifier is used when no notifier is configured.
type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string) {}
