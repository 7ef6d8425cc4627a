package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oshokin/posture-alarm/internal/version"
)

// sendTextPath is the gateway endpoint.
const sendTextPath = "/send-text"

// ErrDispatchFailed is returned when the gateway does not accept a message.
var ErrDispatchFailed = errors.New("dispatch notification")

// errEmptyBaseURL is returned when the gateway URL is missing.
var errEmptyBaseURL = errors.New("gateway URL must be provided")

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, destination, message string) error
}

// HTTPGateway sends messages with GET {base}/send-text?recipient=..&textmessage=..
type HTTPGateway struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPGateway builds a gateway client. A zero timeout means no client timeout.
func NewHTTPGateway(baseURL string, timeout time.Duration) (*HTTPGateway, error) {
	if baseURL == "" {
		return nil, errEmptyBaseURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway URL: %w", err)
	}

	return &HTTPGateway{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Send performs one delivery attempt.
func (g *HTTPGateway) Send(ctx context.Context, destination, message string) error {
	target := *g.base
	target.Path = strings.TrimRight(target.Path, "/") + sendTextPath
	target.RawQuery = url.Values{
		"recipient":   {destination},
		"textmessage": {message},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrDispatchFailed, err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: gateway answered %s", ErrDispatchFailed, resp.Status)
	}

	return nil
}
