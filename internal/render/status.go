package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/posture-alarm/internal/escalation"
)

// confidenceDecimals is how many decimals each confidence is printed with.
const confidenceDecimals = 6

//nolint:gochecknoglobals // Styles are immutable after init.
var (
	neutralStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#3a3a3a")).
			Foreground(lipgloss.Color("#d0d0d0")).
			Padding(0, 1)
	alertStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#d70000")).
			Foreground(lipgloss.Color("#ffffff")).
			Bold(true).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// StatusLine is an escalation.Observer that rewrites a terminal line whenever
// the rendered text changes.
type StatusLine struct {
	w      io.Writer
	labels []string

	mu   sync.Mutex
	last string
}

// NewStatusLine renders to w. Labels name the classes when a tick carries none.
func NewStatusLine(w io.Writer, labels []string) *StatusLine {
	return &StatusLine{
		w:      w,
		labels: append([]string(nil), labels...),
	}
}

// Observe renders the snapshot.
func (s *StatusLine) Observe(snapshot escalation.Snapshot) {
	line := s.Format(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()

	if line == s.last {
		return
	}

	s.last = line

	// Carriage return plus erase-line keeps the status on one row.
	_, _ = fmt.Fprint(s.w, "\r\x1b[2K"+line)
}

// Format returns the status text for a snapshot.
func (s *StatusLine) Format(snapshot escalation.Snapshot) string {
	style := neutralStyle
	if snapshot.Color == escalation.ColorAlert {
		style = alertStyle
	}

	parts := []string{
		style.Render(strings.ToUpper(snapshot.Phase.String())),
	}

	if r := snapshot.Result; r.Len() > 0 {
		parts = append(parts, "Top prediction: "+labelStyle.Render(strings.ToUpper(s.label(snapshot, snapshot.TopIndex))))

		for i, p := range r.Predictions {
			parts = append(parts, fmt.Sprintf("%s: %.*f", s.label(snapshot, i), confidenceDecimals, p.Confidence))
		}
	} else {
		parts = append(parts, dimStyle.Render("waiting for classifier"))
	}

	parts = append(parts, dimStyle.Render(fmt.Sprintf("relapses left: %d", snapshot.RelapseCount)))

	return strings.Join(parts, "  ")
}

// label prefers the label carried by the tick, then the configured one.
func (s *StatusLine) label(snapshot escalation.Snapshot, i int) string {
	if r := snapshot.Result; r != nil && i < len(r.Predictions) && r.Predictions[i].Label != "" {
		return r.Predictions[i].Label
	}

	if i < len(s.labels) {
		return s.labels[i]
	}

	return fmt.Sprintf("class %d", i)
}
