package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/ferry/transfer"
	"github.com/pithecene-io/ferry/types"
	"github.com/pithecene-io/ferry/workflow"
)

const maxBarWidth = 60

// StageMsg reports a stage transition to the model.
type StageMsg workflow.StageEvent

// ProgressMsg reports one uploaded part.
type ProgressMsg transfer.Progress

// DoneMsg ends the view. Result may be partial when Err is set.
type DoneMsg struct {
	Result *workflow.Result
	Err    error
}

// ProgressModel is a Bubble Tea model tracking one delivery.
type ProgressModel struct {
	title    string
	states   map[types.Stage]workflow.StageStatus
	spinner  spinner.Model
	bar      progress.Model
	last     transfer.Progress
	result   *workflow.Result
	err      error
	done     bool
	quitting bool
}

// NewProgressModel creates a model for a delivery titled title.
func NewProgressModel(title string) ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = busyStyle

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	return ProgressModel{
		title:   title,
		states:  make(map[types.Stage]workflow.StageStatus),
		spinner: sp,
		bar:     bar,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StageMsg:
		m.states[msg.Stage] = msg.Status
		return m, nil

	case ProgressMsg:
		m.last = transfer.Progress(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// Interrupted reports whether the user quit before the delivery finished.
func (m ProgressModel) Interrupted() bool {
	return m.quitting && !m.done
}

// Percent returns the transferred fraction in [0, 1].
func (m ProgressModel) Percent() float64 {
	if m.last.TotalBytes <= 0 {
		return 0
	}
	return float64(m.last.BytesSent) / float64(m.last.TotalBytes)
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	for _, stage := range types.Stages() {
		b.WriteString(m.stageLine(stage))
		b.WriteString("\n")
		if stage == types.StageTransfer && m.last.Parts > 0 {
			b.WriteString("  ")
			b.WriteString(m.bar.ViewAs(m.Percent()))
			b.WriteString("\n  ")
			b.WriteString(dimStyle.Render(fmt.Sprintf("part %d/%d  %s / %s",
				m.last.Part, m.last.Parts,
				humanize.IBytes(uint64(m.last.BytesSent)),
				humanize.IBytes(uint64(m.last.TotalBytes)))))
			b.WriteString("\n")
		}
	}

	switch {
	case m.done && m.err != nil:
		b.WriteString("\n")
		b.WriteString(errStyle.Render("✗ " + m.err.Error()))
		b.WriteString("\n")
	case m.done:
		b.WriteString("\n")
		b.WriteString(RenderSummary(m.result))
		b.WriteString("\n")
	case m.quitting:
		b.WriteString("\n")
		b.WriteString(busyStyle.Render("cancelling, aborting transfer..."))
		b.WriteString("\n")
	default:
		b.WriteString(helpStyle.Render("Press q or Ctrl+C to cancel"))
	}
	return b.String()
}

func (m ProgressModel) stageLine(stage types.Stage) string {
	status, seen := m.states[stage]
	var icon string
	switch {
	case !seen:
		icon = dimStyle.Render("·")
	case status == workflow.StageStarted:
		icon = m.spinner.View()
	case status == workflow.StageCompleted:
		icon = okStyle.Render("✓")
	default:
		icon = errStyle.Render("✗")
	}
	return fmt.Sprintf("%s %s", icon, stageStyle(status).Render(string(stage)))
}

// RenderSummary renders the stat boxes of a finished delivery.
func RenderSummary(res *workflow.Result) string {
	if res == nil || res.Transfer == nil {
		return okStyle.Render("✓ done")
	}
	boxes := []string{
		renderStatBox("Parts", fmt.Sprintf("%d", len(res.Transfer.Parts)), accentColor),
		renderStatBox("Uploaded", humanize.IBytes(uint64(res.Transfer.Bytes)), doneColor),
		renderStatBox("Duration", res.Duration.Round(time.Millisecond).String(), brightColor),
	}
	lines := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, boxes...),
		fmt.Sprintf("%s %s", fieldStyle.Render("session"), valueStyle.Render(res.Session.ID)),
		fmt.Sprintf("%s %s", fieldStyle.Render("object"), valueStyle.Render(res.Transfer.Object.Bucket+"/"+res.Transfer.Object.Key)),
	}
	return strings.Join(lines, "\n")
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	box := statBox.BorderForeground(color)
	valueStr := statValue.Foreground(color).Render(value)
	labelStr := statLabel.Render(label)
	return box.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
