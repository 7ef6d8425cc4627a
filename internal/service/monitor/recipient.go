package monitor

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/oshokin/posture-alarm/internal/logger"
	"github.com/oshokin/posture-alarm/internal/repository/preferences"
)

// recipient is who gets notified and what they read.
type recipient struct {
	// destination is the phone number, empty when never saved.
	destination string
	// name is the monitored subject used in the message.
	name string
}

// loadRecipient reads the saved destination and display name.
// The display name falls back to fallbackName.
func loadRecipient(ctx context.Context, store preferences.Store, fallbackName string) (recipient, error) {
	destination, _, err := store.Get(ctx, preferences.KeyDestination)
	if err != nil {
		return recipient{}, fmt.Errorf("get %s: %w", preferences.KeyDestination, err)
	}

	name, ok, err := store.Get(ctx, preferences.KeyDisplayName)
	if err != nil {
		return recipient{}, fmt.Errorf("get %s: %w", preferences.KeyDisplayName, err)
	}

	if !ok || strings.TrimSpace(name) == "" {
		name = fallbackName
	}

	if destination == "" {
		logger.Warn(ctx, "No destination saved, notifications are disabled until one is set with 'prefs set'")
	}

	return recipient{
		destination: strings.TrimSpace(destination),
		name:        name,
	}, nil
}

// renderMessage executes the notification template for name.
func renderMessage(text, name string) (string, error) {
	tmpl, err := template.New("message").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse message template: %w", err)
	}

	var b strings.Builder
	if err = tmpl.Execute(&b, struct{ Name string }{Name: name}); err != nil {
		return "", fmt.Errorf("render message template: %w", err)
	}

	return b.String(), nil
}
