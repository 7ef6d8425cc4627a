package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"

	"github.com/oshokin/posture-alarm/internal/logger"
)

// Response bodies.
const (
	welcomeMessage  = "Welcome to the alarm gateway"
	acceptedMessage = "Text message accepted"
)

// Handler serves the gateway endpoints.
type Handler struct {
	// ctx carries the logger for background sends.
	ctx    context.Context //nolint:containedctx // Background sends outlive the request.
	sender Sender
	// prefix is prepended to every recipient.
	prefix  string
	timeout time.Duration

	wg sync.WaitGroup
}

// NewHandler creates a handler delivering through sender.
func NewHandler(ctx context.Context, sender Sender, prefix string, timeout time.Duration) *Handler {
	return &Handler{
		ctx:     logger.WithName(ctx, "gateway"),
		sender:  sender,
		prefix:  prefix,
		timeout: timeout,
	}
}

// Routes returns the CORS-enabled router.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.welcome)
	mux.HandleFunc("GET /send-text", h.sendText)

	return cors.Default().Handler(mux)
}

// Wait blocks until background sends finish.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) welcome(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, welcomeMessage)
}

func (h *Handler) sendText(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	recipient := strings.TrimSpace(query.Get("recipient"))
	message := query.Get("textmessage")

	if recipient == "" || message == "" {
		http.Error(w, "recipient and textmessage are required", http.StatusBadRequest)

		return
	}

	_, _ = io.WriteString(w, acceptedMessage)

	to := h.prefix + recipient

	h.wg.Add(1)

	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
		defer cancel()

		if err := h.sender.Send(ctx, to, message); err != nil {
			logger.ErrorKV(ctx, "Failed to send text message", "to", to, "error", err)
		}
	}()
}
