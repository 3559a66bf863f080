package source

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ocmon/internal/model"
)

// DefaultDatabasePath is where opencode v1.2.0+ keeps its SQLite store.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "opencode", "opencode.db")
}

// DefaultMessagesPath is the legacy file-based message store root.
func DefaultMessagesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "opencode", "storage", "message")
}

// DB is a read-only handle on the opencode SQLite database. All queries use
// mode=ro so the monitor never takes write locks against the live assistant.
type DB struct {
	db   *sql.DB
	path string
}

// OpenDB opens the database read-only.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{db: db, path: path}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Sessions loads every session, newest first by creation time. limit <= 0
// loads all. Sessions with no surviving assistant interactions are dropped.
func (d *DB) Sessions(limit int) ([]model.Session, error) {
	query := `
		SELECT id, parent_id, title
		FROM session
		ORDER BY time_created DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type sessionRow struct {
		id       string
		parentID sql.NullString
		title    sql.NullString
	}
	var heads []sessionRow
	for rows.Next() {
		var r sessionRow
		if err := rows.Scan(&r.id, &r.parentID, &r.title); err != nil {
			return nil, err
		}
		heads = append(heads, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var sessions []model.Session
	for _, r := range heads {
		sess, ok, err := d.buildSession(r.id, r.parentID.String, r.title.String)
		if err != nil {
			return nil, err
		}
		if ok {
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

// buildSession assembles a session from its message rows. ok is false when no
// assistant interaction with tokens survives.
func (d *DB) buildSession(id, parentID, title string) (model.Session, bool, error) {
	files, err := d.sessionMessages(id)
	if err != nil {
		return model.Session{}, false, err
	}
	if len(files) == 0 {
		return model.Session{}, false, nil
	}

	sortByCreated(files)
	return model.Session{
		ID:         id,
		ParentID:   parentID,
		IsSubAgent: parentID != "",
		Files:      files,
		Title:      title,
		Agent:      files[0].Agent,
		Source:     model.SourceSQLite,
	}, true, nil
}

// sessionMessages loads the assistant interactions for one session. Only
// assistant-role messages with a nonzero token total count; everything else,
// including rows mid-write with malformed JSON, is skipped.
func (d *DB) sessionMessages(sessionID string) ([]model.Interaction, error) {
	rows, err := d.db.Query(`
		SELECT id, data FROM message
		WHERE session_id = ?
		ORDER BY time_created`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []model.Interaction
	for rows.Next() {
		var id string
		var data sql.NullString
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		if !data.Valid {
			continue
		}

		var rec messageRecord
		if err := json.Unmarshal([]byte(data.String), &rec); err != nil {
			continue
		}
		if rec.Role != "assistant" {
			continue
		}
		tokens := rec.Tokens.usage()
		if tokens.Total() == 0 {
			continue
		}

		files = append(files, model.Interaction{
			ID:           id,
			SessionID:    sessionID,
			ModelID:      rec.modelID(),
			Tokens:       tokens,
			Time:         rec.Time.timeData(),
			ProjectPath:  rec.projectPath(),
			Agent:        rec.Agent,
			FinishReason: rec.Finish,
			ReportedCost: rec.Cost,
		})
	}
	return files, rows.Err()
}

// ActiveWorkflows returns workflows whose main session has a message newer
// than now minus threshold, most recent first. Archived-time columns are not
// reliable when sessions end, so recency of messages is the liveness signal.
// At most ten recent roots are considered.
func (d *DB) ActiveWorkflows(threshold time.Duration, now time.Time) ([]model.Workflow, error) {
	cutoff := now.Add(-threshold).UnixMilli()

	rows, err := d.db.Query(`
		SELECT s.id, s.title
		FROM session s
		WHERE s.parent_id IS NULL
		AND EXISTS (
			SELECT 1 FROM message m
			WHERE m.session_id = s.id AND m.time_created > ?
		)
		ORDER BY s.time_created DESC
		LIMIT 10`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query active sessions: %w", err)
	}
	roots, err := scanIDTitle(rows)
	if err != nil {
		return nil, err
	}

	var workflows []model.Workflow
	for _, r := range roots {
		wf, ok, err := d.buildWorkflow(r.id, r.title)
		if err != nil {
			return nil, err
		}
		if ok {
			workflows = append(workflows, wf)
		}
	}
	return workflows, nil
}

// MostRecentWorkflow finds the newest root session that has actual message
// data, skipping empty sessions. Used as the fallback when nothing is active.
func (d *DB) MostRecentWorkflow() (model.Workflow, bool, error) {
	rows, err := d.db.Query(`
		SELECT s.id, s.title
		FROM session s
		WHERE s.parent_id IS NULL
		ORDER BY s.time_created DESC
		LIMIT 10`)
	if err != nil {
		return model.Workflow{}, false, fmt.Errorf("query recent sessions: %w", err)
	}
	roots, err := scanIDTitle(rows)
	if err != nil {
		return model.Workflow{}, false, err
	}

	for _, r := range roots {
		wf, ok, err := d.buildWorkflow(r.id, r.title)
		if err != nil {
			return model.Workflow{}, false, err
		}
		if ok {
			return wf, true, nil
		}
	}
	return model.Workflow{}, false, nil
}

// buildWorkflow assembles a main session and its sub-agents. ok is false when
// the main session itself has no interactions.
func (d *DB) buildWorkflow(mainID, title string) (model.Workflow, bool, error) {
	main, ok, err := d.buildSession(mainID, "", title)
	if err != nil || !ok {
		return model.Workflow{}, false, err
	}

	rows, err := d.db.Query(`
		SELECT s.id, s.title
		FROM session s
		WHERE s.parent_id = ?
		ORDER BY s.time_created ASC`, mainID)
	if err != nil {
		return model.Workflow{}, false, fmt.Errorf("query sub-agents: %w", err)
	}
	children, err := scanIDTitle(rows)
	if err != nil {
		return model.Workflow{}, false, err
	}

	var subs []model.Session
	for _, c := range children {
		sub, ok, err := d.buildSession(c.id, mainID, c.title)
		if err != nil {
			return model.Workflow{}, false, err
		}
		if ok {
			subs = append(subs, sub)
		}
	}

	return model.Workflow{
		WorkflowID: mainID,
		Main:       main,
		SubAgents:  subs,
		Source:     model.SourceSQLite,
	}, true, nil
}

type idTitle struct {
	id    string
	title string
}

func scanIDTitle(rows *sql.Rows) ([]idTitle, error) {
	defer func() { _ = rows.Close() }()

	var out []idTitle
	for rows.Next() {
		var id string
		var title sql.NullString
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out = append(out, idTitle{id: id, title: title.String})
	}
	return out, rows.Err()
}

// ToolUsage aggregates tool invocation outcomes from the part table for the
// given sessions, sorted by call volume. Parts still in the "running" state
// are excluded; only completed and errored invocations count.
func (d *DB) ToolUsage(sessionIDs []string) ([]model.ToolUsageStats, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}

	rows, err := d.db.Query(`
		SELECT
			json_extract(data, '$.tool'),
			json_extract(data, '$.state.status'),
			COUNT(*)
		FROM part
		WHERE session_id IN (`+placeholders+`)
		AND json_extract(data, '$.type') = 'tool'
		AND json_extract(data, '$.state.status') IN ('completed', 'error')
		GROUP BY 1, 2`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tool usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byTool := make(map[string]*model.ToolUsageStats)
	for rows.Next() {
		var tool, status sql.NullString
		var count int
		if err := rows.Scan(&tool, &status, &count); err != nil {
			return nil, err
		}
		if tool.String == "" {
			continue
		}

		stats, ok := byTool[tool.String]
		if !ok {
			stats = &model.ToolUsageStats{Tool: tool.String}
			byTool[tool.String] = stats
		}
		stats.TotalCalls += count
		if status.String == "completed" {
			stats.SuccessCount += count
		} else {
			stats.FailureCount += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.ToolUsageStats, 0, len(byTool))
	for _, stats := range byTool {
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCalls != out[j].TotalCalls {
			return out[i].TotalCalls > out[j].TotalCalls
		}
		return out[i].Tool < out[j].Tool
	})
	return out, nil
}

// Stats summarizes the database for the status command.
type Stats struct {
	Path          string
	Sessions      int64
	Messages      int64
	Projects      int64
	SubAgents     int64
	FileSizeBytes int64
}

// Stats reports row counts and the on-disk size of the database.
func (d *DB) Stats() (Stats, error) {
	stats := Stats{Path: d.path}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM session", &stats.Sessions},
		{"SELECT COUNT(*) FROM message", &stats.Messages},
		{"SELECT COUNT(*) FROM project", &stats.Projects},
		{"SELECT COUNT(*) FROM session WHERE parent_id IS NOT NULL", &stats.SubAgents},
	}
	for _, c := range counts {
		if err := d.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return stats, err
		}
	}

	if info, err := os.Stat(d.path); err == nil {
		stats.FileSizeBytes = info.Size()
	}
	return stats, nil
}
