// Package tui provides the interactive Bubble Tea live dashboard for ocmon.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ocmon/internal/cli"
	"ocmon/internal/live"
	"ocmon/internal/source"
)

// eventLogSize bounds the rolling event log shown under the dashboard.
const eventLogSize = 8

type pollMsg struct {
	res live.PollResult
	err error
}

type tickMsg struct{}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(cli.ColorAccent)
	dimStyle    = lipgloss.NewStyle().Foreground(cli.ColorTextDim)
	eventStyle  = lipgloss.NewStyle().Foreground(cli.ColorTextMuted)
	errStyle    = lipgloss.NewStyle().Foreground(cli.ColorRed)
)

// App is the root Bubble Tea model for live monitoring.
type App struct {
	monitor  *live.Monitor
	interval time.Duration

	spinner spinner.Model
	res     live.PollResult
	polled  bool
	err     error
	events  []string

	width  int
	height int
}

// New builds the live dashboard around a monitor.
func New(monitor *live.Monitor, interval time.Duration) App {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(cli.ColorAccent)

	return App{
		monitor:  monitor,
		interval: interval,
		spinner:  sp,
	}
}

// Run starts the program and blocks until quit.
func Run(monitor *live.Monitor, interval time.Duration) error {
	_, err := tea.NewProgram(New(monitor, interval), tea.WithAltScreen()).Run()
	return err
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.poll())
}

func (a App) poll() tea.Cmd {
	return func() tea.Msg {
		res, err := a.monitor.Poll(time.Now())
		return pollMsg{res: res, err: err}
	}
}

func (a App) schedule() tea.Cmd {
	return tea.Tick(a.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case tickMsg:
		return a, a.poll()

	case pollMsg:
		a.polled = true
		a.err = msg.err
		if msg.err == nil {
			a.res = msg.res
			a.logEvents(msg.res)
		} else if errors.Is(msg.err, source.ErrNoDataSource) {
			return a, tea.Quit
		}
		return a, a.schedule()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *App) logEvents(res live.PollResult) {
	stamp := res.Now.Format("15:04:05")
	for _, ev := range res.Events {
		var line string
		switch ev.Kind {
		case live.WorkflowStarted:
			line = "new workflow " + ev.WorkflowID
		case live.WorkflowEnded:
			line = "workflow ended " + ev.WorkflowID
		case live.WorkflowSwitched:
			line = "switched to " + ev.WorkflowID
		case live.SubAgentDetected:
			line = "new sub-agent " + ev.SessionID
		}
		a.events = append(a.events, fmt.Sprintf("%s  %s", stamp, line))
	}
	if len(a.events) > eventLogSize {
		a.events = a.events[len(a.events)-eventLogSize:]
	}
}

func (a App) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("ocmon live"))
	b.WriteString("  ")
	if !a.polled {
		b.WriteString(a.spinner.View())
		b.WriteString(dimStyle.Render(" loading..."))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d active · refresh %s · q to quit",
		len(a.res.Workflows), a.interval)))
	b.WriteString("\n\n")

	if a.err != nil {
		b.WriteString(errStyle.Render("poll failed: " + a.err.Error()))
		b.WriteString("\n\n")
	}

	if a.res.HasDisplayed {
		b.WriteString(cli.RenderWorkflowDashboard(a.res.Displayed, a.res.Pricing, a.res.Now))
	} else {
		b.WriteString(dimStyle.Render("No active workflows; waiting for session data..."))
		b.WriteString("\n")
	}

	if len(a.events) > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Events"))
		b.WriteString("\n")
		for _, line := range a.events {
			b.WriteString(eventStyle.Render("  " + line))
			b.WriteString("\n")
		}
	}
	return b.String()
}
