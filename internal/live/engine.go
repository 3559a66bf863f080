// Package live tracks active workflows across polls and selects the one to
// display.
package live

import (
	"sort"

	"github.com/samber/lo"

	"ocmon/internal/model"
)

// EventKind classifies a change observed between two polls.
type EventKind int

const (
	// WorkflowStarted fires when a workflow enters the active set.
	WorkflowStarted EventKind = iota
	// WorkflowEnded fires when a tracked workflow leaves the active set and
	// its main session has an observed end time.
	WorkflowEnded
	// WorkflowSwitched fires when the displayed workflow changes.
	WorkflowSwitched
	// SubAgentDetected fires when a session appears in the displayed
	// workflow that was not tracked on the previous poll.
	SubAgentDetected
)

// Event is one observed change. SessionID is set for SubAgentDetected;
// WorkflowID is set for everything.
type Event struct {
	Kind       EventKind
	WorkflowID string
	SessionID  string
}

// Engine is the poll-to-poll state machine for live monitoring. It owns the
// active-workflow map, the displayed workflow id, and the set of session ids
// already seen in the displayed workflow. All mutation happens on the single
// polling goroutine.
type Engine struct {
	active      map[string]model.Workflow
	displayedID string
	tracked     map[string]struct{}
}

// NewEngine creates an engine with no tracked state.
func NewEngine() *Engine {
	return &Engine{
		active:  make(map[string]model.Workflow),
		tracked: make(map[string]struct{}),
	}
}

// Refresh ingests the workflows observed on this poll and returns the changes
// since the previous one, in deterministic order: started, ended, switched,
// then sub-agents, each sorted by id. next is the active set; observed is the
// full freshly-loaded set when the store can provide one (it carries the end
// times of workflows that just left the active set), nil otherwise.
func (e *Engine) Refresh(next, observed []model.Workflow) []Event {
	nextByID := lo.KeyBy(next, func(w model.Workflow) string { return w.WorkflowID })
	observedByID := lo.KeyBy(observed, func(w model.Workflow) string { return w.WorkflowID })

	var events []Event

	started := lo.Filter(lo.Keys(nextByID), func(id string, _ int) bool {
		_, known := e.active[id]
		return !known
	})
	sort.Strings(started)
	for _, id := range started {
		events = append(events, Event{Kind: WorkflowStarted, WorkflowID: id})
	}

	// A workflow that merely aged out of the recency window has not ended;
	// only an observed completion on the main session counts. Either way it
	// stops being tracked. The fresh observation is consulted first: a store
	// that filters by end time only ever exposes the completion on the poll
	// where the workflow departs.
	var ended []string
	for id, prev := range e.active {
		if _, still := nextByID[id]; still {
			continue
		}
		latest := prev
		if cur, ok := observedByID[id]; ok {
			latest = cur
		}
		if !latest.Main.EndTime().IsZero() {
			ended = append(ended, id)
		}
	}
	sort.Strings(ended)
	for _, id := range ended {
		events = append(events, Event{Kind: WorkflowEnded, WorkflowID: id})
	}

	e.active = nextByID

	selected, ok := e.selectDisplayed()
	if !ok {
		e.displayedID = ""
		e.tracked = make(map[string]struct{})
		return events
	}

	if selected.WorkflowID != e.displayedID {
		if e.displayedID != "" {
			events = append(events, Event{Kind: WorkflowSwitched, WorkflowID: selected.WorkflowID})
		}
		e.displayedID = selected.WorkflowID
		// Reset tracking to the new workflow's current sessions so its
		// pre-existing sub-agents do not fire as "new" on this poll.
		e.tracked = make(map[string]struct{})
		for _, id := range selected.SessionIDs() {
			e.tracked[id] = struct{}{}
		}
		return events
	}

	// The tracked set is rebuilt, not appended to, so a session that leaves
	// the displayed workflow is forgotten and can be announced again if it
	// returns.
	current := make(map[string]struct{}, selected.SessionCount())
	var newSessions []string
	for _, id := range selected.SessionIDs() {
		current[id] = struct{}{}
		if _, seen := e.tracked[id]; !seen {
			newSessions = append(newSessions, id)
		}
	}
	e.tracked = current
	sort.Strings(newSessions)
	for _, id := range newSessions {
		events = append(events, Event{
			Kind:       SubAgentDetected,
			WorkflowID: selected.WorkflowID,
			SessionID:  id,
		})
	}
	return events
}

// Displayed returns the workflow currently selected for display.
func (e *Engine) Displayed() (model.Workflow, bool) {
	if e.displayedID == "" {
		return model.Workflow{}, false
	}
	wf, ok := e.active[e.displayedID]
	return wf, ok
}

// ActiveCount is the number of workflows currently tracked.
func (e *Engine) ActiveCount() int {
	return len(e.active)
}

// selectDisplayed ranks active workflows by the main session's own latest
// activity. Sub-agent chatter must not steal the display from the workflow
// the user is actually driving. Ties break toward the smaller workflow id so
// selection is stable across polls.
func (e *Engine) selectDisplayed() (model.Workflow, bool) {
	var (
		best  model.Workflow
		found bool
	)
	for _, wf := range e.active {
		if !found {
			best, found = wf, true
			continue
		}
		ba, wa := best.ParentActivity(), wf.ParentActivity()
		if wa.After(ba) || (wa.Equal(ba) && wf.WorkflowID < best.WorkflowID) {
			best = wf
		}
	}
	return best, found
}

// FilterActive keeps the workflows whose end has not been observed. When
// everything has ended it falls back to the single newest workflow so the
// display is never empty while data exists. Used for stores with no
// message-recency query.
func FilterActive(workflows []model.Workflow) []model.Workflow {
	active := lo.Filter(workflows, func(w model.Workflow, _ int) bool {
		return w.EndTime().IsZero()
	})
	if len(active) == 0 && len(workflows) > 0 {
		active = workflows[:1]
	}
	return active
}
