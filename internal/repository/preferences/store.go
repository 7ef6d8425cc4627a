package preferences

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Well-known keys.
const (
	// KeyDestination is the notification recipient.
	KeyDestination = "destination"
	// KeyDisplayName is the monitored subject's name used in messages.
	KeyDisplayName = "display_name"
)

// DefaultPath is the scope used when no path is given.
const DefaultPath = "/"

var (
	// ErrEmptyKey is returned for an empty key.
	ErrEmptyKey = errors.New("preference key must be provided")
	// ErrNotFound reports a preference that was never saved.
	ErrNotFound = errors.New("preference not set")
	// errUnknownBackend is returned by Open for an unsupported backend.
	errUnknownBackend = errors.New("unknown preferences backend")
)

// Store reads and writes preferences.
type Store interface {
	// Get returns the value and whether it was set.
	Get(ctx context.Context, key string, opts ...Option) (string, bool, error)
	// Set stores the value.
	Set(ctx context.Context, key, value string, opts ...Option) error
	// Close releases the store.
	Close() error
}

// Option scopes a single call.
type Option func(*options)

type options struct {
	path string
}

// WithPath scopes the call to path. Paths are cleaned, so "a/b" and "/a/b/" match.
func WithPath(scope string) Option {
	return func(o *options) {
		o.path = scope
	}
}

func resolve(key string, opts []Option) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}

	o := options{path: DefaultPath}
	for _, opt := range opts {
		opt(&o)
	}

	return cleanPath(o.path), nil
}

func cleanPath(scope string) string {
	if scope == "" {
		return DefaultPath
	}

	return path.Clean("/" + scope)
}

// Open returns the store for backend at location ("file" or "sqlite").
func Open(backend, location string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(location), nil
	case "sqlite":
		if dir := filepath.Dir(location); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create preferences directory: %w", err)
			}
		}

		return OpenSQLite(location)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, backend)
	}
}
