package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/oshokin/posture-alarm/internal/config"
	"github.com/oshokin/posture-alarm/internal/logger"
	"github.com/oshokin/posture-alarm/internal/repository/preferences"
	"github.com/oshokin/posture-alarm/internal/service/common"
	"github.com/oshokin/posture-alarm/internal/version"
)

// Options controls the monitor process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides log_level from the settings.
	LogLevel string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// FeedSource overrides feed.source from the settings.
	FeedSource string
	// Input is read for JSON-line ticks when the feed source is stdin. Defaults to os.Stdin.
	Input io.Reader
	// Output receives the status line. Defaults to os.Stdout.
	Output io.Writer
}

var (
	// ErrNoServerAddress indicates missing server configuration.
	ErrNoServerAddress = errors.New("no server address configured")
	// errUnknownLogLevel is returned for an unsupported log level override.
	errUnknownLogLevel = errors.New("unknown log level")
	// errUnknownFeed is returned for an unsupported feed override.
	errUnknownFeed = errors.New("unknown feed source")
)

// Run starts a monitoring session and blocks until ctx is canceled or the server stops.
func Run(ctx context.Context, opts *Options) (err error) {
	ctx = logger.WithName(ctx, "posture-alarm")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	switch opts.FeedSource {
	case "":
	case config.FeedGRPC, config.FeedStdin:
		settings.Feed.Source = opts.FeedSource
	default:
		return fmt.Errorf("%w: %q", errUnknownFeed, opts.FeedSource)
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

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	ctx = logger.WithKV(ctx, "session_id", uuid.NewString())

	store, err := preferences.Open(settings.Preferences.Backend, settings.Preferences.Path)
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}

	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect current user", "error", err)

		actor = new(common.Actor)
	}

	ctx = withActor(ctx, actor)

	recipient, err := loadRecipient(ctx, store, actor.Username)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	a, err := newApp(ctx, settings, recipient, output)
	if err != nil {
		return fmt.Errorf("initialise session: %w", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Monitor listening",
		"listen_address", listenAddress,
		"version", version.Short(),
		"feed_source", settings.Feed.Source,
		"preferences", settings.Preferences.Path,
	)

	var input io.Reader
	if settings.Feed.Source == config.FeedStdin {
		input = opts.Input
		if input == nil {
			input = os.Stdin
		}
	}

	return a.serve(ctx, lis, input)
}

// withActor tags every session log line with the machine and account it runs under.
func withActor(ctx context.Context, actor *common.Actor) context.Context {
	return logger.WithFields(ctx, map[string]any{
		"hostname": actor.Hostname,
		"username": actor.Username,
	})
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return ":" + port, nil
}
