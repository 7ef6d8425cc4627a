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
	"github.com/oshokin/posture-alarm/internal/service/gateway"
	"github.com/oshokin/posture-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the SMS gateway.
	rootCmd = &cobra.Command{
		Use:   "alarm-gateway [listen-address]",
		Short: "Relay posture notifications to an SMS vendor.",
		Long: `Serves GET /send-text?recipient=<number>&textmessage=<text> and sends the text
to gateway.country_prefix + recipient from gateway.from_number.

Vendor credentials are read from TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN,
optionally from a .env file in the working directory. Without them messages
are only logged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logger.WarnKV(ctx, "Unable to read .env file", "error", err)
			}

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &gateway.Options{
				ConfigPath:    configPath,
				LogLevel:      logLevel,
				ListenAddress: listenAddress,
			}

			return gateway.Run(ctx, options)
		},
	}
)

// Execute runs the alarm-gateway CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}
