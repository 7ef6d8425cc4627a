package feed

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/posture-alarm/internal/domain/classification"
)

var errTestSink = errors.New("sink is gone")

// recordingSink keeps submitted ticks and rejects the ones the test asks for.
type recordingSink struct {
	got    []*classification.Result
	reject func(*classification.Result) error
}

func (s *recordingSink) Submit(_ context.Context, r *classification.Result) error {
	if s.reject != nil {
		if err := s.reject(r); err != nil {
			return err
		}
	}

	s.got = append(s.got, r)

	return nil
}

// TestParseLine accepts both wire shapes and rejects broken ones.
func TestParseLine(t *testing.T) {
	t.Parallel()

	r, err := ParseLine([]byte(`{"predictions":[{"label":"center","confidence":0.9},{"label":"left","confidence":0.1}]}`))
	require.NoError(t, err)
	require.Equal(t, []classification.Prediction{{Label: "center", Confidence: 0.9}, {Label: "left", Confidence: 0.1}}, r.Predictions)

	r, err = ParseLine([]byte(` [{"label":"center","confidence":0},{"label":"down","confidence":1}] `))
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	for _, bad := range []string{``, `{`, `[{"label":"x"}]`, `"center"`} {
		_, err = ParseLine([]byte(bad))
		require.ErrorIs(t, err, classification.ErrInvalidClassification, bad)
	}
}

// TestLineSource skips blank and malformed lines and ends with io.EOF.
func TestLineSource(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`[{"label":"center","confidence":0.8},{"label":"left","confidence":0.2}]`,
		``,
		`not json`,
		`{"predictions":[{"label":"center","confidence":0.3},{"label":"left","confidence":0.7}]}`,
	}, "\n")

	src := NewLineSource(strings.NewReader(input))

	first, err := src.Next(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 0.8, first.Predictions[0].Confidence, 1e-9)

	second, err := src.Next(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 0.7, second.Predictions[1].Confidence, 1e-9)

	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

// TestPump forwards ticks, tolerates rejected ones and stops on sink failure.
func TestPump(t *testing.T) {
	t.Parallel()

	input := `[{"label":"center","confidence":0.8},{"label":"left","confidence":0.2}]
[{"label":"center","confidence":0.8}]
[{"label":"center","confidence":0.1},{"label":"left","confidence":0.9}]`

	sink := &recordingSink{reject: func(r *classification.Result) error {
		return r.Validate(2)
	}}

	require.NoError(t, Pump(context.Background(), NewLineSource(strings.NewReader(input)), sink))
	require.Len(t, sink.got, 2)

	failing := &recordingSink{reject: func(*classification.Result) error { return errTestSink }}
	err := Pump(context.Background(), NewLineSource(strings.NewReader(input)), failing)
	require.ErrorIs(t, err, errTestSink)
}

// TestPump_Cancelled returns cleanly when the context is already done.
func TestPump_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := new(recordingSink)
	require.NoError(t, Pump(ctx, NewLineSource(strings.NewReader("[]")), sink))
	require.Empty(t, sink.got)
}
