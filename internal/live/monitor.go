package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ocmon/internal/model"
	"ocmon/internal/pricing"
	"ocmon/internal/source"
	"ocmon/internal/workflow"
)

// Poll loop defaults.
const (
	DefaultInterval        = 5 * time.Second
	DefaultSessionLimit    = 50
	DefaultActiveThreshold = 30 * time.Minute
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#879A39"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4385BE"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#DA702C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D14D41"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#575653"))
)

// PollResult is one iteration's view of the world.
type PollResult struct {
	Workflows    []model.Workflow
	Displayed    model.Workflow
	HasDisplayed bool
	Events       []Event
	Pricing      pricing.Table
	Now          time.Time
}

// Options configures a Monitor. Zero fields take the package defaults.
type Options struct {
	Loader          *source.Loader
	Grouper         *workflow.Grouper
	Pricing         pricing.Table
	Out             io.Writer
	Interval        time.Duration
	SessionLimit    int
	ActiveThreshold time.Duration
	// Render draws the dashboard for a poll result. Nil disables the
	// dashboard and leaves only event lines.
	Render func(PollResult) string
	Now    func() time.Time
}

// Monitor drives the polling loop: load sessions, group them, feed the
// selection engine, and report changes. Everything runs on the caller's
// goroutine; cancellation comes from the context.
type Monitor struct {
	loader    *source.Loader
	grouper   *workflow.Grouper
	pricing   pricing.Table
	out       io.Writer
	interval  time.Duration
	limit     int
	threshold time.Duration
	render    func(PollResult) string
	now       func() time.Time
	engine    *Engine
}

// NewMonitor builds a monitor from options.
func NewMonitor(opts Options) *Monitor {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SessionLimit <= 0 {
		opts.SessionLimit = DefaultSessionLimit
	}
	if opts.ActiveThreshold <= 0 {
		opts.ActiveThreshold = DefaultActiveThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		loader:    opts.Loader,
		grouper:   opts.Grouper,
		pricing:   opts.Pricing,
		out:       opts.Out,
		interval:  opts.Interval,
		limit:     opts.SessionLimit,
		threshold: opts.ActiveThreshold,
		render:    opts.Render,
		now:       opts.Now,
		engine:    NewEngine(),
	}
}

// Poll runs one iteration: observe the active workflows and refresh the
// selection engine. It returns an error only when no data source exists or
// the store read failed outright; data-quality problems surface as skipped
// records upstream.
func (m *Monitor) Poll(now time.Time) (PollResult, error) {
	workflows, observed, err := m.observe(now)
	if err != nil {
		return PollResult{}, err
	}

	events := m.engine.Refresh(workflows, observed)
	displayed, has := m.engine.Displayed()
	return PollResult{
		Workflows:    workflows,
		Displayed:    displayed,
		HasDisplayed: has,
		Events:       events,
		Pricing:      m.pricing,
		Now:          now,
	}, nil
}

// observe collects the active workflows plus the full observed set. SQLite
// answers directly via the message-recency query, falling back to the newest
// workflow with data when nothing is active. The file store has no hierarchy
// query, so activity is derived from session end times after grouping; the
// ungrouped-by-activity set is returned alongside so the engine can see the
// end time of a workflow the activity filter just dropped.
func (m *Monitor) observe(now time.Time) ([]model.Workflow, []model.Workflow, error) {
	workflows, supported, err := m.loader.ActiveWorkflows(m.threshold, now)
	if err != nil {
		return nil, nil, err
	}

	if supported {
		if len(workflows) == 0 {
			wf, ok, err := m.loader.MostRecentWorkflow()
			if err != nil {
				return nil, nil, err
			}
			if ok {
				workflows = []model.Workflow{wf}
			}
		}
		return workflows, workflows, nil
	}

	sessions, err := m.loader.Sessions(m.limit)
	if err != nil {
		return nil, nil, err
	}
	grouped := m.grouper.Group(sessions)
	return FilterActive(grouped), grouped, nil
}

// Run polls until the context is cancelled. One bad iteration prints a
// diagnostic and keeps going; only a missing data source on startup aborts.
func (m *Monitor) Run(ctx context.Context) error {
	res, err := m.Poll(m.now())
	if err != nil {
		return err
	}
	m.printStartup(res)
	m.renderDashboard(res)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(m.out)
			fmt.Fprintln(m.out, warnStyle.Render("Live monitoring stopped."))
			return nil
		case <-ticker.C:
			res, err := m.Poll(m.now())
			if err != nil {
				if errors.Is(err, source.ErrNoDataSource) {
					return err
				}
				fmt.Fprintln(m.out, errorStyle.Render("poll failed: "+err.Error()))
				continue
			}
			for _, ev := range res.Events {
				m.printEvent(ev, res)
			}
			m.renderDashboard(res)
		}
	}
}

func (m *Monitor) printStartup(res PollResult) {
	if !res.HasDisplayed {
		fmt.Fprintln(m.out, warnStyle.Render("No active workflows yet; waiting for session data..."))
	} else {
		wf := res.Displayed
		fmt.Fprintln(m.out, successStyle.Render("Starting live monitoring of workflow: "+wf.WorkflowID))
		if wf.HasSubAgents() {
			fmt.Fprintln(m.out, infoStyle.Render(fmt.Sprintf(
				"Tracking %d sessions (1 main + %d sub-agents)",
				wf.SessionCount(), len(wf.SubAgents))))
		}
	}
	if n := len(res.Workflows); n > 1 {
		fmt.Fprintln(m.out, infoStyle.Render(fmt.Sprintf("Monitoring %d active workflows", n)))
	}
	fmt.Fprintln(m.out, infoStyle.Render(fmt.Sprintf("Update interval: %s", m.interval)))
	fmt.Fprintln(m.out, hintStyle.Render("Press Ctrl+C to exit"))
	fmt.Fprintln(m.out)
}

func (m *Monitor) printEvent(ev Event, res PollResult) {
	switch ev.Kind {
	case WorkflowStarted:
		fmt.Fprintln(m.out, warnStyle.Render("New workflow detected: "+ev.WorkflowID))
		for _, wf := range res.Workflows {
			if wf.WorkflowID == ev.WorkflowID && wf.HasSubAgents() {
				fmt.Fprintln(m.out, infoStyle.Render(fmt.Sprintf(
					"Tracking %d sessions (1 main + %d sub-agents)",
					wf.SessionCount(), len(wf.SubAgents))))
			}
		}
	case WorkflowEnded:
		fmt.Fprintln(m.out, infoStyle.Render("Workflow ended: "+ev.WorkflowID))
	case WorkflowSwitched:
		fmt.Fprintln(m.out, infoStyle.Render("Switched to workflow: "+ev.WorkflowID))
	case SubAgentDetected:
		fmt.Fprintln(m.out, infoStyle.Render("New sub-agent detected: "+ev.SessionID))
	}
}

func (m *Monitor) renderDashboard(res PollResult) {
	if m.render == nil || !res.HasDisplayed {
		return
	}
	fmt.Fprint(m.out, m.render(res))
}
