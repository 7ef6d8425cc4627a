package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/oshokin/posture-alarm/internal/domain/classification"
	"github.com/oshokin/posture-alarm/internal/logger"
)

// maxLineSize bounds a single JSON line.
const maxLineSize = 64 * 1024

// Source yields classification ticks.
type Source interface {
	// Next blocks until the next tick. It returns io.EOF when the feed ends.
	Next(ctx context.Context) (*classification.Result, error)
}

// Sink accepts ticks. *escalation.Session implements it.
type Sink interface {
	Submit(ctx context.Context, result *classification.Result) error
}

// wirePrediction is one class score on the wire.
type wirePrediction struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// wireResult is the object form of a tick.
type wireResult struct {
	Predictions []wirePrediction `json:"predictions"`
}

// ParseLine decodes one tick. Both {"predictions":[...]} and a bare array of
// {"label","confidence"} objects are accepted.
func ParseLine(line []byte) (*classification.Result, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", classification.ErrInvalidClassification)
	}

	var predictions []wirePrediction

	if line[0] == '[' {
		if err := json.Unmarshal(line, &predictions); err != nil {
			return nil, fmt.Errorf("%w: %w", classification.ErrInvalidClassification, err)
		}
	} else {
		var wr wireResult
		if err := json.Unmarshal(line, &wr); err != nil {
			return nil, fmt.Errorf("%w: %w", classification.ErrInvalidClassification, err)
		}

		predictions = wr.Predictions
	}

	result := &classification.Result{
		Predictions: make([]classification.Prediction, 0, len(predictions)),
	}

	for i, p := range predictions {
		if p.Confidence == nil {
			return nil, fmt.Errorf("%w: class %d has no confidence", classification.ErrInvalidClassification, i)
		}

		result.Predictions = append(result.Predictions, classification.Prediction{
			Label:      p.Label,
			Confidence: *p.Confidence,
		})
	}

	return result, nil
}

// LineSource reads one JSON tick per line. Malformed lines are logged and skipped.
type LineSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewLineSource reads ticks from r.
func NewLineSource(r io.Reader) *LineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	return &LineSource{scanner: scanner}
}

// Next returns the next well-formed tick or io.EOF.
// Cancelling ctx is observed between lines only.
func (s *LineSource) Next(ctx context.Context) (*classification.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read feed: %w", err)
			}

			return nil, io.EOF
		}

		s.line++

		raw := s.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		result, err := ParseLine(raw)
		if err != nil {
			logger.WarnKV(ctx, "Skipping malformed feed line", "line", s.line, "error", err)

			continue
		}

		return result, nil
	}
}

// Pump moves ticks from src to sink until src ends or ctx is done.
// Ticks the sink rejects as malformed are dropped; the pump keeps going.
func Pump(ctx context.Context, src Source, sink Sink) error {
	for {
		result, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			logger.Info(ctx, "Classification feed ended")

			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}

		if err = sink.Submit(ctx, result); err != nil {
			if errors.Is(err, classification.ErrInvalidClassification) {
				continue
			}

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("submit tick: %w", err)
		}
	}
}
