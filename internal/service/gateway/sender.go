package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/oshokin/posture-alarm/internal/logger"
)

// Environment variables holding the vendor credentials.
const (
	EnvAccountSID = "TWILIO_ACCOUNT_SID"
	EnvAuthToken  = "TWILIO_AUTH_TOKEN"
)

var (
	// errMissingCredentials is returned when the account SID or token is empty.
	errMissingCredentials = errors.New("twilio account SID and auth token must be provided")
	// errMissingSender is returned when no sender number is configured.
	errMissingSender = errors.New("sender number must be provided")
)

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender sends messages through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	// httpClient bounds every vendor call with the configured timeout.
	httpClient *http.Client
	from       string
}

// NewTwilioSender creates a sender for the given account. A zero timeout
// leaves vendor calls unbounded.
func NewTwilioSender(accountSID, authToken, from string, timeout time.Duration) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, errMissingCredentials
	}

	if from == "" {
		return nil, errMissingSender
	}

	httpClient := &http.Client{Timeout: timeout}

	base := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(accountSID, authToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(accountSID)

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Client: base,
	})

	return &TwilioSender{
		client:     client,
		httpClient: httpClient,
		from:       from,
	}, nil
}

// Send creates the message. The REST client takes no context; the HTTP
// client timeout bounds the call and ctx carries the logger.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	params := new(twilioapi.CreateMessageParams)
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}

	logger.InfoKV(ctx, "Text message sent", "to", to, "sid", sid)

	return nil
}

// LogSender only logs messages. It is used when no credentials are configured.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(ctx context.Context, to, body string) error {
	logger.InfoKV(ctx, "Text message (not sent, no vendor credentials)", "to", to, "body", body)

	return nil
}
