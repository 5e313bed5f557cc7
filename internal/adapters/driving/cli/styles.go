package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/arcastone/vault/internal/core/domain"
)

// Status colours, shared with the rest of the palette.
var (
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
	colourMuted   = lipgloss.Color("#6C7086")
)

var badgeStyle = lipgloss.NewStyle().Bold(true)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// statusBadge renders a document status, coloured only on a terminal so
// piped output stays plain.
func statusBadge(w io.Writer, s domain.Status) string {
	label := string(s)
	if !isTerminal(w) {
		return label
	}

	colour := colourMuted
	switch s {
	case domain.StatusIndexed:
		colour = colourSuccess
	case domain.StatusExtracted, domain.StatusPending:
		colour = colourWarning
	case domain.StatusFailed:
		colour = colourError
	}
	return badgeStyle.Foreground(colour).Render(label)
}

// outcomeBadge renders an ok/failed marker for batch results.
func outcomeBadge(w io.Writer, ok bool, label string) string {
	if !isTerminal(w) {
		return label
	}
	if ok {
		return badgeStyle.Foreground(colourSuccess).Render(label)
	}
	return badgeStyle.Foreground(colourError).Render(label)
}
