// Package workflow links sub-agent sessions to the main sessions that
// dispatched them.
package workflow

import (
	"sort"

	"ocmon/internal/agent"
	"ocmon/internal/model"
)

// Grouper partitions sessions into main and sub-agent roles and builds one
// workflow per main session.
type Grouper struct {
	registry *agent.Registry
}

// NewGrouper creates a grouper backed by the given agent registry.
func NewGrouper(registry *agent.Registry) *Grouper {
	return &Grouper{registry: registry}
}

// Group builds workflows from sessions. Each main session seeds a workflow.
// A sub-agent with an explicit parent id attaches to that main directly
// (SQLite records the linkage); otherwise it attaches to the latest
// same-project main session that started at or before it. Sub-agents with no
// qualifying parent are promoted to standalone workflows rather than dropped.
// Results are sorted by start time, newest first, unknown start last.
func (g *Grouper) Group(sessions []model.Session) []model.Workflow {
	var mains, subs []model.Session
	for _, s := range sessions {
		if g.isSubAgent(s) {
			subs = append(subs, s)
		} else {
			mains = append(mains, s)
		}
	}

	sortByStart(mains)
	sortByStart(subs)

	workflows := make(map[string]*model.Workflow, len(mains))
	order := make([]string, 0, len(mains)+len(subs))
	for _, main := range mains {
		workflows[main.ID] = &model.Workflow{
			WorkflowID: main.ID,
			Main:       main,
			Source:     main.Source,
		}
		order = append(order, main.ID)
	}

	// Sub-agents are processed in ascending start order so workflows
	// accumulate their children chronologically.
	for _, sub := range subs {
		parentID := g.findParent(sub, mains)
		if wf, ok := workflows[parentID]; parentID != "" && ok {
			wf.SubAgents = append(wf.SubAgents, sub)
			continue
		}
		workflows[sub.ID] = &model.Workflow{
			WorkflowID: sub.ID,
			Main:       sub, // orphan displayed as its own workflow
			Source:     sub.Source,
		}
		order = append(order, sub.ID)
	}

	out := make([]model.Workflow, 0, len(order))
	for _, id := range order {
		out = append(out, *workflows[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].StartTime(), out[j].StartTime()
		if ti.IsZero() {
			return false // unknown start sorts last
		}
		if tj.IsZero() {
			return true
		}
		return ti.After(tj)
	})
	return out
}

// isSubAgent treats explicit store linkage and registry classification as
// equivalent signals.
func (g *Grouper) isSubAgent(s model.Session) bool {
	return s.IsSubAgent || g.registry.IsSubAgent(s.Agent)
}

// findParent returns the parent workflow id for a sub-agent, or "" when none
// qualifies. An explicit parent id wins; the heuristic picks the latest main
// session on the same project that started no later than the sub-agent. A
// sub-agent with no start time cannot be matched.
func (g *Grouper) findParent(sub model.Session, mains []model.Session) string {
	if sub.ParentID != "" {
		return sub.ParentID
	}

	subStart := sub.StartTime()
	if subStart.IsZero() {
		return ""
	}

	best := ""
	for _, main := range mains {
		if main.ProjectName() != sub.ProjectName() {
			continue
		}
		mainStart := main.StartTime()
		if mainStart.IsZero() || mainStart.After(subStart) {
			continue
		}
		// mains are in ascending start order, so the last hit is the
		// latest qualifying parent.
		best = main.ID
	}
	return best
}

// ReloadAgents rescans the agent definitions backing classification.
func (g *Grouper) ReloadAgents() {
	g.registry.Reload()
}

func sortByStart(sessions []model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		ti, tj := sessions[i].StartTime(), sessions[j].StartTime()
		if ti.IsZero() {
			return !tj.IsZero()
		}
		if tj.IsZero() {
			return false
		}
		return ti.Before(tj)
	})
}
