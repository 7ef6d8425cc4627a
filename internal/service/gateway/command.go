package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/oshokin/posture-alarm/internal/config"
	"github.com/oshokin/posture-alarm/internal/logger"
)

// Options controls the alarm-gateway process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides log_level from the settings.
	LogLevel string
	// ListenAddress overrides gateway.listen_addr.
	ListenAddress string
}

// errUnknownLogLevel is returned for an unsupported log level override.
var errUnknownLogLevel = errors.New("unknown log level")

// Run serves the gateway until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-gateway")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	levelName := settings.LogLevel
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, levelName)
	}

	logger.SetLevel(level)

	listenAddress := settings.Gateway.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	sender := newSender(ctx, settings.Gateway.FromNumber, settings.Timeout)
	handler := NewHandler(ctx, sender, settings.Gateway.CountryPrefix, settings.Timeout)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	server := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: settings.Timeout,
	}

	logger.InfoKV(ctx, "Alarm gateway listening",
		"listen_address", listenAddress,
		"country_prefix", settings.Gateway.CountryPrefix,
	)

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settings.Timeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorKV(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	if err = server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	handler.Wait()
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// newSender picks Twilio when credentials are present in the environment.
//
//nolint:ireturn // Either sender satisfies the handler.
func newSender(ctx context.Context, from string, timeout time.Duration) Sender {
	sender, err := NewTwilioSender(os.Getenv(EnvAccountSID), os.Getenv(EnvAuthToken), from, timeout)
	if err != nil {
		logger.WarnKV(ctx, "Text messages will only be logged", "reason", err)

		return LogSender{}
	}

	return sender
}
