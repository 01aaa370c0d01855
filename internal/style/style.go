// Package style provides consistent terminal styling using Lipgloss.
package style

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/agentops/overseer/internal/session"
)

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	Green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	Cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	Purple = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
)

// RenderStatus colors a session status for terminal display.
func RenderStatus(s session.Status) string {
	switch s {
	case session.StatusWorking, session.StatusSpawning:
		return Cyan.Render(string(s))
	case session.StatusMerged, session.StatusMergeable, session.StatusApproved:
		return Green.Render(string(s))
	case session.StatusCIFailed, session.StatusErrored, session.StatusStuck:
		return Red.Render(string(s))
	case session.StatusNeedsInput, session.StatusChangesRequested:
		return Yellow.Render(string(s))
	case session.StatusPROpen, session.StatusReviewPending:
		return Purple.Render(string(s))
	case session.StatusKilled, session.StatusDone, session.StatusTerminated, session.StatusCleanup:
		return Dim.Render(string(s))
	default:
		return string(s)
	}
}
