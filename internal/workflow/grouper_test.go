package workflow

import (
	"testing"

	"ocmon/internal/agent"
	"ocmon/internal/model"
)

func session(id, agentName, project string, createdMS int64) model.Session {
	s := model.Session{ID: id, Agent: agentName}
	var timeData *model.TimeData
	if createdMS > 0 {
		created := createdMS
		timeData = &model.TimeData{Created: &created}
	}
	s.Files = []model.Interaction{{
		ID:          "m-" + id,
		SessionID:   id,
		ModelID:     "claude-sonnet-4-5",
		Tokens:      model.TokenUsage{Input: 10, Output: 5},
		Time:        timeData,
		ProjectPath: "/home/dev/" + project,
		Agent:       agentName,
	}}
	return s
}

func newGrouper(t *testing.T) *Grouper {
	t.Helper()
	return NewGrouper(agent.NewRegistry(""))
}

func TestGroupAttachesToLatestQualifyingMain(t *testing.T) {
	sessions := []model.Session{
		session("main-early", "build", "widgets", 1),
		session("main-late", "build", "widgets", 10_000),
		session("sub", "explore", "widgets", 15_000),
	}

	workflows := newGrouper(t).Group(sessions)
	if len(workflows) != 2 {
		t.Fatalf("got %d workflows, want 2", len(workflows))
	}

	for _, wf := range workflows {
		switch wf.WorkflowID {
		case "main-late":
			if len(wf.SubAgents) != 1 || wf.SubAgents[0].ID != "sub" {
				t.Errorf("sub should attach to the latest main, got %v", wf.SessionIDs())
			}
		case "main-early":
			if len(wf.SubAgents) != 0 {
				t.Errorf("earlier main should have no sub-agents, got %v", wf.SessionIDs())
			}
		default:
			t.Errorf("unexpected workflow %q", wf.WorkflowID)
		}
	}
}

func TestGroupOrphanPromotion(t *testing.T) {
	// The sub-agent starts before every same-project main, so no parent
	// qualifies; it must surface as its own workflow, not vanish.
	sessions := []model.Session{
		session("main", "build", "widgets", 10_000),
		session("sub", "explore", "widgets", 5_000),
	}

	workflows := newGrouper(t).Group(sessions)
	if len(workflows) != 2 {
		t.Fatalf("got %d workflows, want 2", len(workflows))
	}

	var orphan *model.Workflow
	for i := range workflows {
		if workflows[i].WorkflowID == "sub" {
			orphan = &workflows[i]
		}
	}
	if orphan == nil {
		t.Fatal("orphan sub-agent was dropped")
	}
	if orphan.HasSubAgents() {
		t.Error("orphan workflow should have no children")
	}
}

func TestGroupDifferentProjectNeverMatches(t *testing.T) {
	sessions := []model.Session{
		session("main", "build", "widgets", 1_000),
		session("sub", "explore", "gadgets", 5_000),
	}

	workflows := newGrouper(t).Group(sessions)
	if len(workflows) != 2 {
		t.Fatalf("got %d workflows, want 2 (cross-project sub is an orphan)", len(workflows))
	}
}

func TestGroupExplicitParentWins(t *testing.T) {
	// SQLite linkage: the sub carries a parent id pointing at the earlier
	// main even though the heuristic would pick the later one.
	sub := session("sub", "explore", "widgets", 15_000)
	sub.ParentID = "main-early"
	sub.IsSubAgent = true

	sessions := []model.Session{
		session("main-early", "build", "widgets", 1_000),
		session("main-late", "build", "widgets", 10_000),
		sub,
	}

	workflows := newGrouper(t).Group(sessions)
	for _, wf := range workflows {
		if wf.WorkflowID == "main-early" {
			if len(wf.SubAgents) != 1 {
				t.Errorf("explicit parent id ignored, children = %v", wf.SessionIDs())
			}
		}
		if wf.WorkflowID == "main-late" && len(wf.SubAgents) != 0 {
			t.Errorf("heuristic should not override explicit parent id")
		}
	}
}

func TestGroupSubWithoutStartTimeIsOrphan(t *testing.T) {
	sessions := []model.Session{
		session("main", "build", "widgets", 1_000),
		session("sub", "explore", "widgets", 0),
	}

	workflows := newGrouper(t).Group(sessions)
	if len(workflows) != 2 {
		t.Fatalf("got %d workflows, want 2", len(workflows))
	}
}

func TestGroupSortNewestFirstUnknownLast(t *testing.T) {
	sessions := []model.Session{
		session("old", "build", "widgets", 1_000),
		session("new", "build", "widgets", 9_000),
		session("unknown", "build", "widgets", 0),
	}

	workflows := newGrouper(t).Group(sessions)
	if len(workflows) != 3 {
		t.Fatalf("got %d workflows, want 3", len(workflows))
	}
	if workflows[0].WorkflowID != "new" || workflows[1].WorkflowID != "old" || workflows[2].WorkflowID != "unknown" {
		ids := []string{workflows[0].WorkflowID, workflows[1].WorkflowID, workflows[2].WorkflowID}
		t.Errorf("order = %v, want [new old unknown]", ids)
	}
}

func TestGroupBothUntimedKeepOrder(t *testing.T) {
	sessions := []model.Session{
		session("first", "build", "widgets", 0),
		session("second", "build", "widgets", 0),
	}

	workflows := newGrouper(t).Group(sessions)
	if len(workflows) != 2 {
		t.Fatalf("got %d workflows, want 2", len(workflows))
	}
	if workflows[0].WorkflowID != "first" || workflows[1].WorkflowID != "second" {
		t.Errorf("order = [%s %s], want input order when no start times exist",
			workflows[0].WorkflowID, workflows[1].WorkflowID)
	}
}

func TestGroupRegistryClassification(t *testing.T) {
	// No explicit linkage: the registry alone marks "explore" as a sub-agent.
	sessions := []model.Session{
		session("main", "build", "widgets", 1_000),
		session("sub", "explore", "widgets", 2_000),
	}

	workflows := newGrouper(t).Group(sessions)
	if len(workflows) != 1 {
		t.Fatalf("got %d workflows, want 1", len(workflows))
	}
	if !workflows[0].HasSubAgents() {
		t.Error("explore session should attach as a sub-agent")
	}
}
