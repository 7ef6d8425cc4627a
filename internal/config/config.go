package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/posture-alarm/internal/logger"
)

// Config holds the settings shared by the posture-alarm binaries.
type Config struct {
	// ServerAddress is the gRPC address of the monitor service.
	ServerAddress string `yaml:"server_addr"`
	// Timeout bounds network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Labels names the classifier classes in feed order. Index 0 is the alert class.
	Labels []string `yaml:"labels"`

	Escalation   Escalation   `yaml:"escalation"`
	Notification Notification `yaml:"notification"`
	Audio        Audio        `yaml:"audio"`
	Preferences  Preferences  `yaml:"preferences"`
	Feed         Feed         `yaml:"feed"`
	Gateway      Gateway      `yaml:"gateway"`
}

// Escalation tunes the relapse state machine.
type Escalation struct {
	// Debounce is how long a non-alert class must persist before the alarm starts.
	Debounce time.Duration `yaml:"debounce"`
	// BlinkPeriod is the visual alarm toggle interval.
	BlinkPeriod time.Duration `yaml:"blink_period"`
	// Threshold is the number of confirmed relapses before one notification.
	Threshold int `yaml:"threshold"`
	// Policy decides whether recovery resets the relapse counter.
	Policy string `yaml:"policy"`
}

// Notification configures the remote notification dispatcher.
type Notification struct {
	// GatewayURL is the base URL of the SMS gateway.
	GatewayURL string `yaml:"gateway_url"`
	// MessageTemplate is a text/template rendered with the display name.
	MessageTemplate string `yaml:"message_template"`
	// QueueSize bounds undispatched notifications.
	QueueSize int `yaml:"queue_size"`
}

// Audio configures the alarm sound.
type Audio struct {
	// Command is the player argv run in a loop while alarming. Empty means silent.
	Command []string `yaml:"command"`
}

// Preferences selects the preference store backend.
type Preferences struct {
	// Backend is "file" or "sqlite".
	Backend string `yaml:"backend"`
	// Path is the file or database location.
	Path string `yaml:"path"`
}

// Feed selects where classification ticks come from.
type Feed struct {
	// Source is "grpc" or "stdin".
	Source string `yaml:"source"`
}

// Gateway configures the alarm-gateway binary.
type Gateway struct {
	// ListenAddress is the HTTP listen address.
	ListenAddress string `yaml:"listen_addr"`
	// CountryPrefix is prepended to every recipient.
	CountryPrefix string `yaml:"country_prefix"`
	// FromNumber is the vendor sender number.
	FromNumber string `yaml:"from_number"`
}

// Escalation policies.
const (
	PolicyResetOnRecovery = "reset_on_recovery"
	PolicyCarryOver       = "carry_over"
)

// Preference backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Feed sources.
const (
	FeedGRPC  = "grpc"
	FeedStdin = "stdin"
)

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "posture-alarm-settings.yaml"
	// DefaultPreferencesFilename is the default file-backed preference store.
	DefaultPreferencesFilename = "posture-alarm-preferences.json"
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultDebounce is how long a relapse must last before it is confirmed.
	DefaultDebounce = 3 * time.Second
	// DefaultBlinkPeriod is the visual alarm toggle period.
	DefaultBlinkPeriod = 200 * time.Millisecond
	// DefaultThreshold is the number of relapses per notification.
	DefaultThreshold = 3
	// DefaultGatewayURL points at a locally running alarm-gateway.
	DefaultGatewayURL = "http://localhost:4000"
	// DefaultMessageTemplate is the notification text.
	DefaultMessageTemplate = "{{.Name}} keeps getting distracted. Time to check in."
	// DefaultQueueSize bounds pending notifications.
	DefaultQueueSize = 8
	// DefaultGatewayListenAddress is where alarm-gateway listens.
	DefaultGatewayListenAddress = ":4000"
	// DefaultCountryPrefix is prepended to recipients by the gateway.
	DefaultCountryPrefix = "+52"
	// DefaultFilePermissions is used for settings and preference files.
	DefaultFilePermissions = 0o600
	// minLabels is the smallest useful class set: alert plus one distraction.
	minLabels = 2
)

// DefaultLabels are the reference classifier classes.
//
//nolint:gochecknoglobals // Read-only default.
var DefaultLabels = []string{"center", "left", "right", "down"}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when the server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errTooFewLabels is returned when fewer than two classes are configured.
	errTooFewLabels = errors.New("at least two labels are required")
	// errInvalidThreshold is returned for a non-positive relapse threshold.
	errInvalidThreshold = errors.New("escalation threshold must be positive")
	// errUnknownPolicy is returned for an unsupported escalation policy.
	errUnknownPolicy = errors.New("unknown escalation policy")
	// errUnknownBackend is returned for an unsupported preference backend.
	errUnknownBackend = errors.New("unknown preferences backend")
	// errUnknownFeed is returned for an unsupported feed source.
	errUnknownFeed = errors.New("unknown feed source")
	// errUnknownLogLevel is returned for an unparsable log level.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
//
//nolint:cyclop // A flat list of checks reads better than helpers.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	if len(settings.Labels) == 0 {
		settings.Labels = append([]string(nil), DefaultLabels...)
	}

	if len(settings.Labels) < minLabels {
		return errTooFewLabels
	}

	if err := validateEscalation(&settings.Escalation); err != nil {
		return err
	}

	if err := validateNotification(&settings.Notification); err != nil {
		return err
	}

	switch settings.Preferences.Backend {
	case "":
		settings.Preferences.Backend = BackendFile
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, settings.Preferences.Backend)
	}

	if settings.Preferences.Path == "" {
		settings.Preferences.Path = DefaultPreferencesFilename
	}

	switch settings.Feed.Source {
	case "":
		settings.Feed.Source = FeedGRPC
	case FeedGRPC, FeedStdin:
	default:
		return fmt.Errorf("%w: %q", errUnknownFeed, settings.Feed.Source)
	}

	if settings.Gateway.ListenAddress == "" {
		settings.Gateway.ListenAddress = DefaultGatewayListenAddress
	}

	if settings.Gateway.CountryPrefix == "" {
		settings.Gateway.CountryPrefix = DefaultCountryPrefix
	}

	return nil
}

func validateEscalation(e *Escalation) error {
	if e.Debounce <= 0 {
		e.Debounce = DefaultDebounce
	}

	if e.BlinkPeriod <= 0 {
		e.BlinkPeriod = DefaultBlinkPeriod
	}

	if e.Threshold == 0 {
		e.Threshold = DefaultThreshold
	}

	if e.Threshold < 0 {
		return errInvalidThreshold
	}

	switch e.Policy {
	case "":
		e.Policy = PolicyResetOnRecovery
	case PolicyResetOnRecovery, PolicyCarryOver:
	default:
		return fmt.Errorf("%w: %q", errUnknownPolicy, e.Policy)
	}

	return nil
}

func validateNotification(n *Notification) error {
	if n.GatewayURL == "" {
		n.GatewayURL = DefaultGatewayURL
	}

	if _, err := url.ParseRequestURI(n.GatewayURL); err != nil {
		return fmt.Errorf("invalid gateway URL: %w", err)
	}

	if n.MessageTemplate == "" {
		n.MessageTemplate = DefaultMessageTemplate
	}

	if _, err := template.New("message").Parse(n.MessageTemplate); err != nil {
		return fmt.Errorf("invalid message template: %w", err)
	}

	if n.QueueSize <= 0 {
		n.QueueSize = DefaultQueueSize
	}

	return nil
}
