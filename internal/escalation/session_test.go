package escalation

import (
	"context"
	"math/rand/v2"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/posture-alarm/internal/domain/classification"
)

// TestSession_CalmIsIdempotent verifies that alert ticks in Calm never arm anything.
func TestSession_CalmIsIdempotent(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := start(t, testSettings())

		for range 20 {
			h.tick(t, 0)
			h.advance(500 * time.Millisecond)

			s := h.session.Snapshot()
			require.Equal(t, PhaseCalm, s.Phase)
			require.Equal(t, ColorNeutral, s.Color)
			require.False(t, s.DebounceArmed)
			require.False(t, s.BlinkArmed)
			require.Equal(t, 3, s.RelapseCount)
		}

		plays, _ := h.audio.counts()
		require.Zero(t, plays)

		h.stop(t)
	})
}

// TestSession_RelapseConfirmed covers ticks [1,1,1] inside the debounce window.
func TestSession_RelapseConfirmed(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := start(t, testSettings())

		h.tick(t, 1)
		require.Equal(t, PhasePending, h.session.Snapshot().Phase)
		require.True(t, h.session.Snapshot().DebounceArmed)

		h.advance(time.Second)
		h.tick(t, 1)
		h.advance(time.Second)
		h.tick(t, 1)

		// Still inside the window.
		require.Equal(t, PhasePending, h.session.Snapshot().Phase)

		plays, _ := h.audio.counts()
		require.Zero(t, plays)

		h.advance(time.Second + time.Millisecond)

		s := h.session.Snapshot()
		require.Equal(t, PhaseAlarming, s.Phase)
		require.Equal(t, 2, s.RelapseCount)
		require.False(t, s.DebounceArmed)
		require.True(t, s.BlinkArmed)
		require.Equal(t, 1, s.Relapses)

		// More distraction ticks while alarming change nothing.
		h.tick(t, 2)
		h.tick(t, 3)

		plays, _ = h.audio.counts()
		require.Equal(t, 1, plays)
		require.Equal(t, 2, h.session.Snapshot().RelapseCount)
		require.Empty(t, h.notifier.all())

		h.stop(t)
	})
}

// TestSession_RelapseDismissed covers ticks [1, 0] with the 0 before the debounce elapses.
func TestSession_RelapseDismissed(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := start(t, testSettings())

		h.tick(t, 1)
		h.advance(2999 * time.Millisecond)
		h.tick(t, 0)

		s := h.session.Snapshot()
		require.Equal(t, PhaseCalm, s.Phase)
		require.False(t, s.DebounceArmed)

		// The cancelled debounce must never fire.
		h.advance(10 * time.Second)

		s = h.session.Snapshot()
		require.Equal(t, PhaseCalm, s.Phase)
		require.Equal(t, 3, s.RelapseCount)

		plays, stops := h.audio.counts()
		require.Zero(t, plays)
		require.Zero(t, stops)

		h.stop(t)
	})
}

// TestSession_Recovery covers an alert tick while alarming.
func TestSession_Recovery(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := start(t, testSettings())

		h.tick(t, 1)
		h.advance(3*time.Second + 201*time.Millisecond)

		s := h.session.Snapshot()
		require.Equal(t, PhaseAlarming, s.Phase)
		require.Equal(t, ColorAlert, s.Color)
		require.Equal(t, 2, s.RelapseCount)

		h.tick(t, 0)

		s = h.session.Snapshot()
		require.Equal(t, PhaseCalm, s.Phase)
		require.Equal(t, ColorNeutral, s.Color)
		require.False(t, s.BlinkArmed)
		require.Equal(t, 3, s.RelapseCount)

		_, stops := h.audio.counts()
		require.Equal(t, 1, stops)

		// The blink loop is gone for good.
		h.advance(2 * time.Second)
		require.Equal(t, ColorNeutral, h.session.Snapshot().Color)

		h.stop(t)
	})
}

// TestSession_BlinkLoop checks the color toggles every period starting from Alert.
func TestSession_BlinkLoop(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := start(t, testSettings())

		h.tick(t, 2)
		h.advance(3*time.Second + time.Millisecond)

		require.Equal(t, PhaseAlarming, h.session.Snapshot().Phase)
		require.Equal(t, ColorNeutral, h.session.Snapshot().Color)

		for i := 1; i <= 50; i++ {
			h.advance(200 * time.Millisecond)

			want := ColorNeutral
			if i%2 == 1 {
				want = ColorAlert
			}

			require.Equal(t, want, h.session.Snapshot().Color, "firing %d", i)
		}

		h.stop(t)
	})
}

// TestSession_ThresholdNotifiesOnce covers the counter reaching zero.
func TestSession_ThresholdNotifiesOnce(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		settings := testSettings()
		settings.Threshold = 1

		h := start(t, settings)

		h.tick(t, 1)
		h.advance(3*time.Second + time.Millisecond)

		s := h.session.Snapshot()
		require.Equal(t, PhaseAlarming, s.Phase)
		require.Equal(t, 1, s.RelapseCount)
		require.Equal(t, 1, s.Notifications)
		require.Equal(t, []notification{{destination: "5512345678", message: "Ana keeps getting distracted."}}, h.notifier.all())

		// No duplicates while the same episode continues.
		for range 10 {
			h.tick(t, 3)
			h.advance(time.Second)
		}

		require.Len(t, h.notifier.all(), 1)

		// A fresh relapse cycle notifies again.
		h.tick(t, 0)
		h.tick(t, 1)
		h.advance(3*time.Second + time.Millisecond)

		require.Len(t, h.notifier.all(), 2)
		require.Equal(t, 1, h.session.Snapshot().RelapseCount)

		h.stop(t)
	})
}

// relapseAndRecover drives one full relapse cycle.
func (h *harness) relapseAndRecover(t *testing.T) {
	t.Helper()

	h.tick(t, 1)
	h.advance(3*time.Second + time.Millisecond)
	require.Equal(t, PhaseAlarming, h.session.Snapshot().Phase)

	h.tick(t, 0)
	require.Equal(t, PhaseCalm, h.session.Snapshot().Phase)
}

// TestSession_ResetOnRecoveryPolicy keeps the counter full across recoveries.
func TestSession_ResetOnRecoveryPolicy(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := start(t, testSettings())

		for range 5 {
			h.relapseAndRecover(t)
			require.Equal(t, 3, h.session.Snapshot().RelapseCount)
		}

		require.Empty(t, h.notifier.all())
		require.Equal(t, 5, h.session.Snapshot().Relapses)

		h.stop(t)
	})
}

// TestSession_CarryOverPolicy notifies after threshold relapses with recoveries in between.
func TestSession_CarryOverPolicy(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		settings := testSettings()
		settings.Policy = PolicyCarryOver

		h := start(t, settings)

		h.relapseAndRecover(t)
		require.Equal(t, 2, h.session.Snapshot().RelapseCount)

		h.relapseAndRecover(t)
		require.Equal(t, 1, h.session.Snapshot().RelapseCount)
		require.Empty(t, h.notifier.all())

		h.relapseAndRecover(t)
		require.Equal(t, 3, h.session.Snapshot().RelapseCount)
		require.Len(t, h.notifier.all(), 1)

		h.relapseAndRecover(t)
		h.relapseAndRecover(t)
		require.Len(t, h.notifier.all(), 1)

		h.relapseAndRecover(t)
		require.Len(t, h.notifier.all(), 2)

		h.stop(t)
	})
}

// TestSession_NoDestination resets the counter without notifying.
func TestSession_NoDestination(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		settings := testSettings()
		settings.Threshold = 1
		settings.Destination = ""

		h := start(t, settings)

		h.tick(t, 1)
		h.advance(3*time.Second + time.Millisecond)

		require.Empty(t, h.notifier.all())
		require.Equal(t, 1, h.session.Snapshot().RelapseCount)
		require.Zero(t, h.session.Snapshot().Notifications)

		h.stop(t)
	})
}

// TestSession_RejectsMalformedTicks keeps the phase on invalid input.
func TestSession_RejectsMalformedTicks(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := start(t, testSettings())

		h.tick(t, 1)

		err := h.session.Submit(context.Background(), resultWithTop(0, 2))
		require.ErrorIs(t, err, classification.ErrInvalidClassification)

		err = h.session.Submit(context.Background(), nil)
		require.ErrorIs(t, err, classification.ErrInvalidClassification)

		synctest.Wait()
		require.Equal(t, PhasePending, h.session.Snapshot().Phase)

		h.advance(3*time.Second + time.Millisecond)
		require.Equal(t, PhaseAlarming, h.session.Snapshot().Phase)

		h.stop(t)
	})
}

// TestSession_StaleFiringsIgnored delivers callbacks after their timers were cancelled.
func TestSession_StaleFiringsIgnored(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sched := new(manualScheduler)
		h := start(t, testSettings(), WithScheduler(sched))

		h.tick(t, 1)
		debounce := sched.lastAfter()

		h.tick(t, 0)
		require.True(t, debounce.stopped.Load())

		// A firing already in flight when the cancel happened.
		debounce.fn()
		synctest.Wait()

		s := h.session.Snapshot()
		require.Equal(t, PhaseCalm, s.Phase)
		require.Equal(t, 3, s.RelapseCount)

		// Re-arm, and fire the old handle while the new one is pending.
		h.tick(t, 2)
		debounce.fn()
		synctest.Wait()
		require.Equal(t, PhasePending, h.session.Snapshot().Phase)

		sched.lastAfter().fn()
		synctest.Wait()
		require.Equal(t, PhaseAlarming, h.session.Snapshot().Phase)

		blink := sched.lastRepeat()
		blink.fn()
		synctest.Wait()
		require.Equal(t, ColorAlert, h.session.Snapshot().Color)

		h.tick(t, 0)
		require.True(t, blink.stopped.Load())

		blink.fn()
		synctest.Wait()
		require.Equal(t, ColorNeutral, h.session.Snapshot().Color)

		h.stop(t)
	})
}

// TestSession_ScheduleFailuresRetry takes no transition until a timer can be armed.
func TestSession_ScheduleFailuresRetry(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sched := &flakyScheduler{afterFailures: 1, everyFailures: 1}
		h := start(t, testSettings(), WithScheduler(sched))

		h.tick(t, 1)
		require.Equal(t, PhaseCalm, h.session.Snapshot().Phase)

		h.tick(t, 1)
		require.Equal(t, PhasePending, h.session.Snapshot().Phase)

		h.advance(3*time.Second + time.Millisecond)

		s := h.session.Snapshot()
		require.Equal(t, PhaseAlarming, s.Phase)
		require.False(t, s.BlinkArmed)
		require.Equal(t, 2, s.RelapseCount)

		h.tick(t, 1)
		require.True(t, h.session.Snapshot().BlinkArmed)
		require.Equal(t, 2, h.session.Snapshot().RelapseCount)

		h.advance(201 * time.Millisecond)
		require.Equal(t, ColorAlert, h.session.Snapshot().Color)

		h.stop(t)
	})
}

// TestSession_Teardown cancels timers and silences the alarm.
func TestSession_Teardown(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := start(t, testSettings())

		h.tick(t, 1)
		h.advance(3*time.Second + 201*time.Millisecond)
		require.Equal(t, PhaseAlarming, h.session.Snapshot().Phase)

		h.stop(t)

		s := h.session.Snapshot()
		require.Equal(t, PhaseCalm, s.Phase)
		require.Equal(t, ColorNeutral, s.Color)
		require.False(t, s.BlinkArmed)
		require.False(t, s.DebounceArmed)

		_, stops := h.audio.counts()
		require.Equal(t, 1, stops)

		err := h.session.Submit(context.Background(), resultWithTop(1, 4))
		require.ErrorIs(t, err, ErrSessionClosed)

		require.ErrorIs(t, h.session.Run(context.Background()), ErrAlreadyRunning)
	})
}

// TestSession_TimerInvariants drives random interleavings of ticks and clock moves.
func TestSession_TimerInvariants(t *testing.T) {
	t.Parallel()

	for seed := range uint64(8) {
		synctest.Test(t, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed+1))
			h := start(t, testSettings())

			for range 300 {
				if rng.IntN(3) == 0 {
					h.tick(t, rng.IntN(4))
				} else {
					h.advance(time.Duration(rng.IntN(1500)) * time.Millisecond)
				}

				s := h.session.Snapshot()
				require.False(t, s.DebounceArmed && s.BlinkArmed)
				require.Equal(t, s.Phase == PhasePending, s.DebounceArmed)
				require.Equal(t, s.Phase == PhaseAlarming, s.BlinkArmed)

				if s.Color == ColorAlert {
					require.Equal(t, PhaseAlarming, s.Phase)
				}

				require.GreaterOrEqual(t, s.RelapseCount, 1)
				require.LessOrEqual(t, s.RelapseCount, 3)
			}

			h.stop(t)
		})
	}
}

// TestSession_Observers receives a snapshot per processed event.
func TestSession_Observers(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var phases []Phase

		h := start(t, testSettings(), WithObserver(ObserverFunc(func(s Snapshot) {
			phases = append(phases, s.Phase)
		})))

		h.tick(t, 1)
		h.advance(3*time.Second + time.Millisecond)
		h.tick(t, 0)
		h.stop(t)

		require.Equal(t, []Phase{PhaseCalm, PhasePending, PhaseAlarming, PhaseCalm, PhaseCalm}, phases)
	})
}

// TestSettings_Defaults fills zero values with the reference settings.
func TestSettings_Defaults(t *testing.T) {
	t.Parallel()

	s := NewSession(Settings{}).Settings()
	require.Equal(t, DefaultDebounce, s.Debounce)
	require.Equal(t, DefaultBlinkPeriod, s.BlinkPeriod)
	require.Equal(t, DefaultThreshold, s.Threshold)
	require.Equal(t, PolicyResetOnRecovery, s.Policy)
	require.Equal(t, "alarming", PhaseAlarming.String())
	require.Equal(t, "alert", ColorAlert.String())
}
