package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/posture-alarm/internal/config"
	"github.com/oshokin/posture-alarm/internal/domain/classification"
	"github.com/oshokin/posture-alarm/internal/feed"
	"github.com/oshokin/posture-alarm/internal/logger"
	"github.com/oshokin/posture-alarm/internal/service/common"
)

// defaultReplayInterval is the pause between pushed ticks.
const defaultReplayInterval = 100 * time.Millisecond

// replayInterval paces pushed ticks.
//
//nolint:gochecknoglobals // Cobra flags are package-level by convention.
var replayInterval time.Duration

// replayCmd pushes recorded ticks to a running session.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var replayCmd = &cobra.Command{
	Use:   "replay <file.jsonl>",
	Short: "Push recorded classifications to a running session.",
	Long: `Reads one classification per line and pushes each to the running session at
a fixed interval. Lines look like
{"predictions":[{"label":"center","confidence":0.91},{"label":"left","confidence":0.03}, ...]}.
Malformed lines and ticks the session rejects are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		settings, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		f, err := os.Open(filepath.Clean(args[0]))
		if err != nil {
			return fmt.Errorf("open recording: %w", err)
		}

		defer f.Close()

		client, err := common.Dial(ctx, settings.ServerAddress, common.WithCallTimeout(settings.Timeout))
		if err != nil {
			return err
		}

		defer client.Close()

		sink := &pacedSink{
			client:   client,
			interval: replayInterval,
		}

		if err = feed.Pump(ctx, feed.NewLineSource(f), sink); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Replay finished", "pushed", sink.pushed)

		return nil
	},
}

// pacedSink pushes ticks over gRPC, waiting interval between them.
type pacedSink struct {
	client   *common.Client
	interval time.Duration
	pushed   int
}

func (s *pacedSink) Submit(ctx context.Context, result *classification.Result) error {
	if s.pushed > 0 && s.interval > 0 {
		t := time.NewTimer(s.interval)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := s.client.PushClassification(ctx, result); err != nil {
		return err
	}

	s.pushed++

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	replayCmd.Flags().DurationVar(&replayInterval, "interval", defaultReplayInterval, "pause between ticks")
}
