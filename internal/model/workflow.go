package model

import (
	"sort"
	"time"

	"ocmon/internal/pricing"
)

// Workflow groups a main session with the sub-agent sessions it dispatched.
// Workflows are rebuilt from fresh session data on every poll; only the
// WorkflowID carries identity across rebuilds.
type Workflow struct {
	WorkflowID string // same as the main session's ID
	Main       Session
	SubAgents  []Session
	Source     Source
}

// ProjectName is the main session's project.
func (w Workflow) ProjectName() string {
	return w.Main.ProjectName()
}

// DisplayTitle is the main session's display title.
func (w Workflow) DisplayTitle() string {
	return w.Main.DisplayTitle()
}

// AllSessions returns main plus sub-agents in chronological start order.
func (w Workflow) AllSessions() []Session {
	all := make([]Session, 0, 1+len(w.SubAgents))
	all = append(all, w.Main)
	all = append(all, w.SubAgents...)
	sort.SliceStable(all, func(i, j int) bool {
		ti, tj := all[i].StartTime(), all[j].StartTime()
		if ti.IsZero() {
			return !tj.IsZero() // unknown sorts as the minimum time
		}
		if tj.IsZero() {
			return false
		}
		return ti.Before(tj)
	})
	return all
}

// StartTime is the earliest start across main and sub-agent sessions.
func (w Workflow) StartTime() time.Time {
	var start time.Time
	for _, s := range w.allUnsorted() {
		if t := s.StartTime(); !t.IsZero() && (start.IsZero() || t.Before(start)) {
			start = t
		}
	}
	return start
}

// EndTime is the latest end across main and sub-agent sessions. Zero means at
// least nothing has completed yet and the workflow is considered open.
func (w Workflow) EndTime() time.Time {
	var end time.Time
	for _, s := range w.allUnsorted() {
		if t := s.EndTime(); t.After(end) {
			end = t
		}
	}
	return end
}

// TotalTokens aggregates token usage across all sessions.
func (w Workflow) TotalTokens() TokenUsage {
	var total TokenUsage
	for _, s := range w.allUnsorted() {
		total = total.Add(s.TotalTokens())
	}
	return total
}

// TotalCost aggregates cost across all sessions.
func (w Workflow) TotalCost(table pricing.Table) float64 {
	var total float64
	for _, s := range w.allUnsorted() {
		total += s.TotalCost(table)
	}
	return total
}

// SessionCount is the main session plus all sub-agents.
func (w Workflow) SessionCount() int {
	return 1 + len(w.SubAgents)
}

// HasSubAgents reports whether any sub-agent session is attached.
func (w Workflow) HasSubAgents() bool {
	return len(w.SubAgents) > 0
}

// SessionIDs returns the IDs of every session in the workflow.
func (w Workflow) SessionIDs() []string {
	ids := make([]string, 0, w.SessionCount())
	for _, s := range w.allUnsorted() {
		ids = append(ids, s.ID)
	}
	return ids
}

// ParentActivity is the main session's own most recent interaction time,
// falling back to its start time when it has no timestamped interactions.
// Sub-agent activity deliberately does not participate: display selection
// ranks workflows by what the parent itself did last.
func (w Workflow) ParentActivity() time.Time {
	if t := w.Main.LatestActivity(); !t.IsZero() {
		return t
	}
	return w.Main.StartTime()
}

// LatestActivity is the most recent interaction time across every session.
func (w Workflow) LatestActivity() time.Time {
	var latest time.Time
	for _, s := range w.allUnsorted() {
		if t := s.LatestActivity(); t.After(latest) {
			latest = t
		}
	}
	return latest
}

// AllFiles returns every interaction across all sessions.
func (w Workflow) AllFiles() []Interaction {
	var files []Interaction
	for _, s := range w.allUnsorted() {
		files = append(files, s.Files...)
	}
	return files
}

// RecentFile is the interaction with the latest creation time across the
// workflow, used for context-window and current-model displays.
func (w Workflow) RecentFile() (Interaction, bool) {
	var (
		recent Interaction
		best   time.Time
		found  bool
	)
	for _, f := range w.AllFiles() {
		t, ok := f.Time.CreatedTime()
		if !ok {
			continue
		}
		if !found || t.After(best) {
			recent, best, found = f, t, true
		}
	}
	return recent, found
}

// OutputRate is output tokens per second across the whole workflow over the
// trailing window ending at now.
func (w Workflow) OutputRate(window time.Duration, now time.Time) float64 {
	return outputRate(w.AllFiles(), window, now)
}

func (w Workflow) allUnsorted() []Session {
	all := make([]Session, 0, 1+len(w.SubAgents))
	all = append(all, w.Main)
	all = append(all, w.SubAgents...)
	return all
}
