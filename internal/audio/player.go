package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/oshokin/posture-alarm/internal/logger"
)

// restartDelay throttles a player command that exits immediately.
const restartDelay = 500 * time.Millisecond

// errEmptyCommand is returned when no player argv is configured.
var errEmptyCommand = errors.New("player command must be provided")

// runFunc plays the sound once and returns when it finishes or ctx is done.
type runFunc func(ctx context.Context) error

// LoopPlayer replays a sound command until stopped.
type LoopPlayer struct {
	run runFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoopPlayer creates a player that runs argv once per loop iteration.
func NewLoopPlayer(argv []string) (*LoopPlayer, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errEmptyCommand
	}

	name, args := argv[0], append([]string(nil), argv[1:]...)

	return &LoopPlayer{
		run: func(ctx context.Context) error {
			//nolint:gosec // The argv comes from the operator's settings file.
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}, nil
}

// PlayLoop starts looping the sound. It is a no-op while already playing.
func (p *LoopPlayer) PlayLoop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return nil
	}

	// The loop outlives the caller's request scope; Stop ends it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	p.cancel = cancel
	p.done = done

	go p.loop(loopCtx, done)

	return nil
}

// Stop kills the current playback and waits for the loop to exit.
func (p *LoopPlayer) Stop(context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	return nil
}

// Playing reports whether the loop is active.
func (p *LoopPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cancel != nil
}

func (p *LoopPlayer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		started := time.Now()

		err := p.run(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			logger.WarnKV(ctx, "Alarm player exited with error", "error", fmt.Errorf("play: %w", err))
		}

		// Don't spin on a command that cannot play.
		if time.Since(started) < restartDelay {
			select {
			case <-ctx.Done():
				return
			case <-time.After(restartDelay):
			}
		}
	}
}

// Silent satisfies the audio port without making a sound.
type Silent struct{}

// PlayLoop logs instead of playing.
func (Silent) PlayLoop(ctx context.Context) error {
	logger.Debug(ctx, "Alarm sound requested, no player configured")

	return nil
}

// Stop does nothing.
func (Silent) Stop(context.Context) error {
	return nil
}
