package cli

import (
	"sort"
	"strings"

	"ocmon/internal/model"
	"ocmon/internal/pricing"
)

// SessionsTable renders the recent-sessions listing.
func SessionsTable(sessions []model.Session, prices pricing.Table) string {
	t := Table{
		Title:   "Recent Sessions",
		Headers: []string{"Session", "Project", "Agent", "Models", "Tokens", "Cost", "Duration", "Last Activity"},
	}
	for _, s := range sessions {
		duration := "-"
		if ms, ok := s.DurationMS(); ok {
			duration = FormatDuration(ms)
		}
		agentName := s.Agent
		if agentName == "" {
			agentName = "-"
		}
		t.Rows = append(t.Rows, []string{
			s.DisplayTitle(),
			s.ProjectName(),
			agentName,
			strings.Join(s.ModelsUsed(), ", "),
			FormatTokens(s.TotalTokens().Total()),
			FormatCost(s.TotalCost(prices)),
			duration,
			FormatRelative(s.LatestActivity()),
		})
	}
	return RenderTable(t)
}

// WorkflowsTable renders grouped workflows with their sub-agent counts.
func WorkflowsTable(workflows []model.Workflow, prices pricing.Table) string {
	t := Table{
		Title:   "Workflows",
		Headers: []string{"Workflow", "Project", "Sessions", "Sub-agents", "Tokens", "Cost", "Last Activity"},
	}
	for _, wf := range workflows {
		t.Rows = append(t.Rows, []string{
			wf.DisplayTitle(),
			wf.ProjectName(),
			FormatNumber(int64(wf.SessionCount())),
			FormatNumber(int64(len(wf.SubAgents))),
			FormatTokens(wf.TotalTokens().Total()),
			FormatCost(wf.TotalCost(prices)),
			FormatRelative(wf.LatestActivity()),
		})
	}
	return RenderTable(t)
}

// ModelBreakdownTable aggregates per-model usage across sessions.
func ModelBreakdownTable(sessions []model.Session, prices pricing.Table) string {
	merged := make(map[string]model.ModelUsage)
	for _, s := range sessions {
		for id, mu := range s.ModelBreakdown(prices) {
			agg := merged[id]
			agg.Interactions += mu.Interactions
			agg.Tokens = agg.Tokens.Add(mu.Tokens)
			agg.CostUSD += mu.CostUSD
			agg.DurationMS += mu.DurationMS
			agg.Rates = append(agg.Rates, mu.Rates...)
			merged[id] = agg
		}
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return merged[ids[i]].CostUSD > merged[ids[j]].CostUSD
	})

	t := Table{
		Title:   "Model Usage",
		Headers: []string{"Model", "Calls", "Input", "Output", "Cache W", "Cache R", "Cost", "Avg Rate"},
	}
	for _, id := range ids {
		mu := merged[id]
		t.Rows = append(t.Rows, []string{
			id,
			FormatNumber(int64(mu.Interactions)),
			FormatTokens(mu.Tokens.Input),
			FormatTokens(mu.Tokens.Output),
			FormatTokens(mu.Tokens.CacheWrite),
			FormatTokens(mu.Tokens.CacheRead),
			FormatCost(mu.CostUSD),
			FormatRate(meanRate(mu.Rates)),
		})
	}
	return RenderTable(t)
}

// ToolUsageTable renders tool invocation statistics.
func ToolUsageTable(stats []model.ToolUsageStats) string {
	t := Table{
		Title:   "Tool Usage",
		Headers: []string{"Tool", "Calls", "Success", "Failure", "Success Rate"},
	}
	for _, s := range stats {
		t.Rows = append(t.Rows, []string{
			s.Tool,
			FormatNumber(int64(s.TotalCalls)),
			FormatNumber(int64(s.SuccessCount)),
			FormatNumber(int64(s.FailureCount)),
			FormatPercent(s.SuccessRate()),
		})
	}
	return RenderTable(t)
}

// AgentsTable renders the known agent roles.
func AgentsTable(mains, subs []string) string {
	t := Table{
		Title:   "Agents",
		Headers: []string{"Agent", "Role"},
	}
	for _, name := range mains {
		t.Rows = append(t.Rows, []string{name, "primary"})
	}
	for _, name := range subs {
		t.Rows = append(t.Rows, []string{name, "subagent"})
	}
	return RenderTable(t)
}

// PricingTable renders the effective merged pricing table.
func PricingTable(prices pricing.Table) string {
	ids := make([]string, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := Table{
		Title:   "Model Pricing ($/1M tokens)",
		Headers: []string{"Model", "Input", "Output", "Cache W", "Cache R", "Context"},
	}
	for _, id := range ids {
		p := prices[id]
		t.Rows = append(t.Rows, []string{
			id,
			FormatCost(p.Input),
			FormatCost(p.Output),
			FormatCost(p.CacheWrite),
			FormatCost(p.CacheRead),
			FormatTokens(p.ContextWindow),
		})
	}
	return RenderTable(t)
}

// SubAgentsTable renders the sub-agent sessions of one workflow.
func SubAgentsTable(wf model.Workflow, prices pricing.Table) string {
	if !wf.HasSubAgents() {
		return ""
	}
	t := Table{
		Title:   "Sub-agents",
		Headers: []string{"Session", "Agent", "Tokens", "Cost", "Last Activity"},
	}
	for _, sub := range wf.SubAgents {
		agentName := sub.Agent
		if agentName == "" {
			agentName = "-"
		}
		t.Rows = append(t.Rows, []string{
			sub.DisplayTitle(),
			agentName,
			FormatTokens(sub.TotalTokens().Total()),
			FormatCost(sub.TotalCost(prices)),
			FormatRelative(sub.LatestActivity()),
		})
	}
	return RenderTable(t)
}

func meanRate(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	return sum / float64(len(rates))
}
