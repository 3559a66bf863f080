package source

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"ocmon/internal/model"
)

// seedDatabase creates a minimal opencode-shaped database for query tests.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opencode.db")

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	stmts := []string{
		`CREATE TABLE project (id TEXT PRIMARY KEY, worktree TEXT, name TEXT)`,
		`CREATE TABLE session (
			id TEXT PRIMARY KEY, project_id TEXT, parent_id TEXT,
			title TEXT, time_created INTEGER)`,
		`CREATE TABLE message (
			id TEXT PRIMARY KEY, session_id TEXT,
			time_created INTEGER, data TEXT)`,
		`CREATE TABLE part (
			id TEXT PRIMARY KEY, session_id TEXT, message_id TEXT,
			time_created INTEGER, data TEXT)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatal(err)
		}
	}

	exec(`INSERT INTO project VALUES ('prj_1', '/home/dev/widgets', 'widgets')`)
	exec(`INSERT INTO session VALUES ('ses_main', 'prj_1', NULL, 'Fix the parser', 1000)`)
	exec(`INSERT INTO session VALUES ('ses_sub', 'prj_1', 'ses_main', NULL, 1500)`)
	exec(`INSERT INTO session VALUES ('ses_empty', 'prj_1', NULL, 'ACP probe', 2000)`)

	exec(`INSERT INTO message VALUES ('msg_u', 'ses_main', 1000,
		'{"role":"user","tokens":{"input":0,"output":0}}')`)
	exec(`INSERT INTO message VALUES ('msg_1', 'ses_main', 1100,
		'{"role":"assistant","modelID":"claude-sonnet-4-5",
		  "tokens":{"input":100,"output":40,"cache":{"write":5,"read":2}},
		  "time":{"created":1100,"completed":1600},
		  "path":{"cwd":"/home/dev/widgets"},"agent":"build"}')`)
	exec(`INSERT INTO message VALUES ('msg_2', 'ses_sub', 1500,
		'{"role":"assistant","model":{"modelID":"claude-haiku-4-5"},
		  "tokens":{"input":30,"output":10},
		  "time":{"created":1500,"completed":1700},"agent":"explore"}')`)
	exec(`INSERT INTO message VALUES ('msg_bad', 'ses_main', 1200, '{"role":"assist')`)

	exec(`INSERT INTO part VALUES ('prt_1', 'ses_main', 'msg_1', 1100,
		'{"type":"tool","tool":"read","state":{"status":"completed"}}')`)
	exec(`INSERT INTO part VALUES ('prt_2', 'ses_main', 'msg_1', 1110,
		'{"type":"tool","tool":"read","state":{"status":"error"}}')`)
	exec(`INSERT INTO part VALUES ('prt_3', 'ses_main', 'msg_1', 1120,
		'{"type":"tool","tool":"bash","state":{"status":"running"}}')`)
	exec(`INSERT INTO part VALUES ('prt_4', 'ses_main', 'msg_1', 1130,
		'{"type":"text","text":"done"}')`)

	return path
}

func TestDBSessions(t *testing.T) {
	db, err := OpenDB(seedDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	sessions, err := db.Sessions(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2 (empty session dropped)", len(sessions))
	}

	byID := make(map[string]model.Session)
	for _, s := range sessions {
		byID[s.ID] = s
	}

	main, ok := byID["ses_main"]
	if !ok {
		t.Fatal("ses_main missing")
	}
	if main.IsSubAgent || main.ParentID != "" {
		t.Error("ses_main should not be a sub-agent")
	}
	if main.Title != "Fix the parser" {
		t.Errorf("Title = %q", main.Title)
	}
	if len(main.Files) != 1 {
		t.Fatalf("ses_main interactions = %d, want 1 (user and malformed rows skipped)", len(main.Files))
	}
	if main.Files[0].ModelID != "claude-sonnet-4-5" {
		t.Errorf("ModelID = %q", main.Files[0].ModelID)
	}
	if main.Files[0].ProjectPath != "/home/dev/widgets" {
		t.Errorf("ProjectPath = %q", main.Files[0].ProjectPath)
	}
	if main.Source != model.SourceSQLite {
		t.Errorf("Source = %q", main.Source)
	}

	sub, ok := byID["ses_sub"]
	if !ok {
		t.Fatal("ses_sub missing")
	}
	if !sub.IsSubAgent || sub.ParentID != "ses_main" {
		t.Errorf("ses_sub parent linkage wrong: IsSubAgent=%v ParentID=%q", sub.IsSubAgent, sub.ParentID)
	}
	if sub.Files[0].ModelID != "claude-haiku-4-5" {
		t.Errorf("nested model ID not extracted: %q", sub.Files[0].ModelID)
	}
}

func TestDBActiveWorkflows(t *testing.T) {
	db, err := OpenDB(seedDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	// Poll time just after the last message: everything is active.
	now := time.UnixMilli(1700)
	workflows, err := db.ActiveWorkflows(30*time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(workflows) != 1 {
		t.Fatalf("got %d workflows, want 1", len(workflows))
	}

	wf := workflows[0]
	if wf.WorkflowID != "ses_main" {
		t.Errorf("WorkflowID = %q", wf.WorkflowID)
	}
	if len(wf.SubAgents) != 1 || wf.SubAgents[0].ID != "ses_sub" {
		t.Errorf("sub-agents = %v", wf.SessionIDs())
	}

	// Threshold in the past: nothing qualifies.
	workflows, err = db.ActiveWorkflows(30*time.Minute, now.Add(31*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(workflows) != 0 {
		t.Fatalf("got %d workflows after threshold, want 0", len(workflows))
	}
}

func TestDBMostRecentWorkflow(t *testing.T) {
	db, err := OpenDB(seedDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	wf, ok, err := db.MostRecentWorkflow()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a workflow")
	}
	// ses_empty is newer but has no message data; it must be skipped.
	if wf.WorkflowID != "ses_main" {
		t.Errorf("WorkflowID = %q, want ses_main", wf.WorkflowID)
	}
}

func TestDBToolUsage(t *testing.T) {
	db, err := OpenDB(seedDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	stats, err := db.ToolUsage([]string{"ses_main", "ses_sub"})
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d tools, want 1 (running bash excluded)", len(stats))
	}

	read := stats[0]
	if read.Tool != "read" || read.TotalCalls != 2 || read.SuccessCount != 1 || read.FailureCount != 1 {
		t.Errorf("read stats = %+v", read)
	}
	if read.SuccessRate() != 50 {
		t.Errorf("SuccessRate = %v, want 50", read.SuccessRate())
	}
}

func TestDBStats(t *testing.T) {
	db, err := OpenDB(seedDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	stats, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Sessions != 3 || stats.Messages != 4 || stats.Projects != 1 || stats.SubAgents != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.FileSizeBytes == 0 {
		t.Error("FileSizeBytes should be nonzero")
	}
}
