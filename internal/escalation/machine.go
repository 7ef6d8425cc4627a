package escalation

import (
	"context"
	"time"

	"github.com/oshokin/posture-alarm/internal/domain/classification"
	"github.com/oshokin/posture-alarm/internal/logger"
	"github.com/oshokin/posture-alarm/internal/timer"
)

// timerKind tells the two timer families apart.
type timerKind int

const (
	timerDebounce timerKind = iota
	timerBlink
)

// timerEvent is a timer firing handed back to the session goroutine.
type timerEvent struct {
	kind       timerKind
	generation uint64
}

// state is the mutable escalation record. Only the owning Machine touches it.
type state struct {
	phase        Phase
	relapseCount int
	color        Color

	// debounce is armed only in PhasePending, blink only in PhaseAlarming.
	debounce    timer.Handle
	debounceGen uint64
	blink       timer.Handle
	blinkGen    uint64
	generation  uint64

	topIndex      int
	result        *classification.Result
	relapses      int
	notifications int
}

// Machine is the escalation state machine. It is not safe for concurrent use;
// a Session serializes every call onto one goroutine.
type Machine struct {
	settings  Settings
	scheduler timer.Scheduler
	audio     Audio
	notifier  Notifier
	// fire delivers timer firings back to whoever serializes the machine.
	fire  func(timerEvent)
	state state
}

// newMachine creates a Calm machine with a full relapse counter.
func newMachine(settings Settings, scheduler timer.Scheduler, audio Audio, notifier Notifier, fire func(timerEvent)) *Machine {
	return &Machine{
		settings:  settings,
		scheduler: scheduler,
		audio:     audio,
		notifier:  notifier,
		fire:      fire,
		state: state{
			phase:        PhaseCalm,
			relapseCount: settings.Threshold,
			color:        ColorNeutral,
		},
	}
}

// observe applies one accepted tick whose top class is top.
func (m *Machine) observe(ctx context.Context, result *classification.Result, top int) {
	m.state.result = result
	m.state.topIndex = top

	alert := top == classification.AlertIndex

	switch m.state.phase {
	case PhaseCalm:
		if !alert {
			m.suspectRelapse(ctx, top)
		}
	case PhasePending:
		if alert {
			m.cancelDebounce()
			m.state.phase = PhaseCalm

			logger.DebugKV(ctx, "Relapse dismissed before debounce elapsed")
		}
	case PhaseAlarming:
		if alert {
			m.markRecovered(ctx)

			return
		}

		// The blink loop may have failed to arm on confirmation.
		if m.state.blink == nil {
			m.armBlink(ctx)
		}
	}
}

// suspectRelapse moves Calm to Pending by arming the debounce timer.
// If the timer cannot be armed the machine stays Calm and the next
// non-alert tick tries again.
func (m *Machine) suspectRelapse(ctx context.Context, top int) {
	m.state.generation++
	gen := m.state.generation

	handle, err := m.scheduler.After(m.settings.Debounce, func() {
		m.fire(timerEvent{kind: timerDebounce, generation: gen})
	})
	if err != nil {
		logger.WarnKV(ctx, "Failed to arm debounce timer", "error", err)

		return
	}

	m.state.debounce = handle
	m.state.debounceGen = gen
	m.state.phase = PhasePending

	logger.DebugKV(ctx, "Relapse suspected", "top_index", top, "debounce", m.settings.Debounce.String())
}

// handleTimer applies a timer firing unless it is stale.
func (m *Machine) handleTimer(ctx context.Context, ev timerEvent) bool {
	switch ev.kind {
	case timerDebounce:
		if m.state.phase != PhasePending || m.state.debounce == nil || ev.generation != m.state.debounceGen {
			logger.DebugKV(ctx, "Ignoring stale debounce firing", "generation", ev.generation)

			return false
		}

		m.confirmRelapse(ctx)
	case timerBlink:
		if m.state.phase != PhaseAlarming || m.state.blink == nil || ev.generation != m.state.blinkGen {
			return false
		}

		m.toggleColor()
	}

	return true
}

// confirmRelapse moves Pending to Alarming: sound, decrement, blink.
func (m *Machine) confirmRelapse(ctx context.Context) {
	m.state.debounce = nil
	m.state.phase = PhaseAlarming
	m.state.relapses++

	if err := m.audio.PlayLoop(ctx); err != nil {
		logger.ErrorKV(ctx, "Failed to start alarm sound", "error", err)
	}

	m.state.relapseCount--

	m.armBlink(ctx)

	logger.InfoKV(ctx, "Relapse confirmed", "relapse_count", m.state.relapseCount, "relapses", m.state.relapses)

	if m.state.relapseCount <= 0 {
		m.thresholdReached(ctx)
	}
}

// armBlink starts the free-running visual alarm loop.
func (m *Machine) armBlink(ctx context.Context) {
	m.state.generation++
	gen := m.state.generation

	handle, err := m.scheduler.Every(m.settings.BlinkPeriod, func() {
		m.fire(timerEvent{kind: timerBlink, generation: gen})
	})
	if err != nil {
		logger.WarnKV(ctx, "Failed to arm blink loop, retrying on next tick", "error", err)

		return
	}

	m.state.blink = handle
	m.state.blinkGen = gen
}

func (m *Machine) toggleColor() {
	if m.state.color == ColorNeutral {
		m.state.color = ColorAlert
	} else {
		m.state.color = ColorNeutral
	}
}

// thresholdReached sends exactly one notification and refills the counter.
// Delivery is the notifier's business; the counter resets regardless.
func (m *Machine) thresholdReached(ctx context.Context) {
	m.state.relapseCount = m.settings.Threshold

	if m.settings.Destination == "" {
		logger.WarnKV(ctx, "Relapse threshold reached but no destination is configured")

		return
	}

	m.notifier.Notify(ctx, m.settings.Destination, m.settings.Message)
	m.state.notifications++

	logger.InfoKV(ctx, "Relapse threshold reached, notification dispatched",
		"destination", m.settings.Destination,
		"notifications", m.state.notifications,
	)
}

// markRecovered moves Alarming to Calm.
func (m *Machine) markRecovered(ctx context.Context) {
	if err := m.audio.Stop(ctx); err != nil {
		logger.ErrorKV(ctx, "Failed to stop alarm sound", "error", err)
	}

	m.cancelBlink()
	m.state.color = ColorNeutral
	m.state.phase = PhaseCalm

	if m.settings.Policy == PolicyResetOnRecovery {
		m.state.relapseCount = m.settings.Threshold
	}

	logger.InfoKV(ctx, "Subject recovered", "relapse_count", m.state.relapseCount)
}

func (m *Machine) cancelDebounce() {
	if m.state.debounce != nil {
		m.state.debounce.Stop()
		m.state.debounce = nil
	}
}

func (m *Machine) cancelBlink() {
	if m.state.blink != nil {
		m.state.blink.Stop()
		m.state.blink = nil
	}
}

// teardown cancels every timer, silences the alarm and returns to Calm.
func (m *Machine) teardown(ctx context.Context) {
	m.cancelDebounce()
	m.cancelBlink()

	if m.state.phase == PhaseAlarming {
		if err := m.audio.Stop(ctx); err != nil {
			logger.ErrorKV(ctx, "Failed to stop alarm sound on teardown", "error", err)
		}
	}

	m.state.phase = PhaseCalm
	m.state.color = ColorNeutral
}

// snapshot copies the observable state.
func (m *Machine) snapshot(now time.Time) Snapshot {
	return Snapshot{
		Phase:         m.state.phase,
		RelapseCount:  m.state.relapseCount,
		Color:         m.state.color,
		DebounceArmed: m.state.debounce != nil,
		BlinkArmed:    m.state.blink != nil,
		TopIndex:      m.state.topIndex,
		Result:        m.state.result.Clone(),
		Relapses:      m.state.relapses,
		Notifications: m.state.notifications,
		UpdatedAt:     now,
	}
}
