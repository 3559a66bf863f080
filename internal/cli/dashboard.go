package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ocmon/internal/model"
	"ocmon/internal/pricing"
)

// OutputRateWindow is the trailing window used for the live rate display.
const OutputRateWindow = 5 * time.Minute

var panelStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 2)

// RenderWorkflowDashboard draws the live panel for the displayed workflow:
// identity, aggregate usage, output rate, context-window pressure, and the
// sub-agent table.
func RenderWorkflowDashboard(wf model.Workflow, prices pricing.Table, now time.Time) string {
	var b strings.Builder

	b.WriteString(RenderTitle(fmt.Sprintf("%s — %s", wf.DisplayTitle(), wf.ProjectName())))
	b.WriteString("\n")

	tokens := wf.TotalTokens()
	rows := []struct {
		label string
		value string
	}{
		{"Sessions", fmt.Sprintf("%d (1 main + %d sub-agents)", wf.SessionCount(), len(wf.SubAgents))},
		{"Tokens", fmt.Sprintf("%s in / %s out / %s cache",
			FormatTokens(tokens.Input), FormatTokens(tokens.Output),
			FormatTokens(tokens.CacheWrite+tokens.CacheRead))},
		{"Cost", FormatCost(wf.TotalCost(prices))},
		{"Output rate", FormatRate(wf.OutputRate(OutputRateWindow, now))},
		{"Last activity", FormatRelative(wf.LatestActivity())},
	}

	if recent, ok := wf.RecentFile(); ok {
		rows = append(rows,
			struct{ label, value string }{"Model", recent.ModelID},
			struct{ label, value string }{"Context", contextUsageLine(recent, prices)},
		)
	}

	var body strings.Builder
	for _, r := range rows {
		body.WriteString(mutedStyle.Render(fmt.Sprintf("%-14s", r.label)))
		body.WriteString(valueStyle.Render(r.value))
		body.WriteString("\n")
	}
	b.WriteString(panelStyle.Render(strings.TrimRight(body.String(), "\n")))
	b.WriteString("\n")

	if sub := SubAgentsTable(wf, prices); sub != "" {
		b.WriteString(sub)
	}
	return b.String()
}

// contextUsageLine shows how full the model's context window is based on the
// latest interaction. Context size is input plus both cache directions.
func contextUsageLine(recent model.Interaction, prices pricing.Table) string {
	window := prices.ContextWindowFor(recent.ModelID)
	size := recent.Tokens.Input + recent.Tokens.CacheRead + recent.Tokens.CacheWrite

	pct := 0.0
	if window > 0 {
		pct = float64(size) / float64(window) * 100
		if pct > 100 {
			pct = 100
		}
	}
	bar := RenderProgressBar(int(size), int(window), 20)
	return fmt.Sprintf("%s %s", bar, FormatPercent(pct))
}
