// Package tui provides the Bubble Tea progress view for ferry uploads.
//
// The view is opt-in (--tui) and shows the same data as the rendered
// result. Quitting it cancels the delivery and aborts the open transfer.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/ferry/workflow"
)

var (
	accentColor  = lipgloss.Color("#0EA5E9")
	doneColor    = lipgloss.Color("#22C55E")
	pendingColor = lipgloss.Color("#EAB308")
	failedColor  = lipgloss.Color("#DC2626")
	dimColor     = lipgloss.Color("#71717A")
	brightColor  = lipgloss.Color("#FAFAFA")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)
	dimStyle   = lipgloss.NewStyle().Foreground(dimColor)
	fieldStyle = lipgloss.NewStyle().Foreground(dimColor).Width(10)
	valueStyle = lipgloss.NewStyle().Foreground(brightColor)
	okStyle    = lipgloss.NewStyle().Foreground(doneColor)
	busyStyle  = lipgloss.NewStyle().Foreground(pendingColor)
	errStyle   = lipgloss.NewStyle().Foreground(failedColor)
	helpStyle  = lipgloss.NewStyle().Foreground(dimColor).MarginTop(1)

	statBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2).
		Width(18).
		Align(lipgloss.Center)
	statLabel = lipgloss.NewStyle().Foreground(dimColor).Align(lipgloss.Center)
	statValue = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
)

// stageStyle colors a stage name by its last reported status.
func stageStyle(status workflow.StageStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Width(16)
	switch status {
	case workflow.StageCompleted:
		return base.Foreground(doneColor)
	case workflow.StageStarted:
		return base.Foreground(pendingColor)
	case workflow.StageFailed:
		return base.Foreground(failedColor)
	default:
		return base.Foreground(dimColor)
	}
}
