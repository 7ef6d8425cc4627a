package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oshokin/posture-alarm/internal/config"
	"github.com/oshokin/posture-alarm/internal/logger"
	"github.com/oshokin/posture-alarm/internal/service/monitor"
	"github.com/oshokin/posture-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string
	// feedSource overrides the configured feed source.
	feedSource string

	// rootCmd runs a monitoring session.
	rootCmd = &cobra.Command{
		Use:   "posture-alarm [listen-address]",
		Short: "Watch posture classifications and raise an alarm on relapse.",
		Long: `Runs a monitoring session that consumes posture classifications and escalates
when the subject stays out of the alert position.

A relapse lasting longer than the debounce period starts a blinking alarm and
the configured sound. Every threshold-th relapse sends one text message to the
destination saved with 'posture-alarm prefs set destination <number>'.

Classifications arrive over gRPC (see 'replay') or as JSON lines on stdin
when --feed stdin is given. The listen address argument overrides the port of
server_addr from the configuration file.`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: loadEnv,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &monitor.Options{
				ConfigPath:    configPath,
				LogLevel:      logLevel,
				ListenAddress: listenAddress,
				FeedSource:    feedSource,
				Input:         cmd.InOrStdin(),
				Output:        cmd.OutOrStdout(),
			}

			return monitor.Run(ctx, options)
		},
	}
)

// Execute runs the posture-alarm CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv reads a .env file from the working directory when one exists.
func loadEnv(cmd *cobra.Command, _ []string) error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	logger.WarnKV(cmd.Context(), "Unable to read .env file", "error", err)

	return nil
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&feedSource, "feed", "", "override feed source (grpc, stdin)")

	rootCmd.AddCommand(statusCmd, replayCmd, prefsCmd)
}
