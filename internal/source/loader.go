package source

import (
	"errors"
	"os"
	"time"

	"ocmon/internal/model"
)

// ErrNoDataSource is returned when neither the SQLite database nor the file
// store is reachable. It is the one hard stop in the data path; everything
// else degrades by skipping records.
var ErrNoDataSource = errors.New(
	"no session data found: expected SQLite database at ~/.local/share/opencode/opencode.db " +
		"or file storage at ~/.local/share/opencode/storage/message")

// Loader is the unified entry point for session data. It prefers the SQLite
// database (opencode v1.2.0+) and falls back to the legacy file store, or
// honors an explicit force override.
type Loader struct {
	dbPath     string
	files      *FileStore
	force      model.Source // empty means auto-detect
	lastSource model.Source
}

// NewLoader builds a loader over the given paths. Empty paths fall back to
// the opencode defaults. force pins the source instead of auto-detecting.
func NewLoader(dbPath, filesPath string, force model.Source) *Loader {
	if dbPath == "" {
		dbPath = DefaultDatabasePath()
	}
	if filesPath == "" {
		filesPath = DefaultMessagesPath()
	}
	return &Loader{
		dbPath: dbPath,
		files:  NewFileStore(filesPath),
		force:  force,
	}
}

// SQLiteAvailable reports whether the database file exists.
func (l *Loader) SQLiteAvailable() bool {
	if l.dbPath == "" {
		return false
	}
	info, err := os.Stat(l.dbPath)
	return err == nil && !info.IsDir()
}

// FilesAvailable reports whether the file store directory exists.
func (l *Loader) FilesAvailable() bool {
	return l.files.Available()
}

// LastSource is the source used by the most recent load, empty before any.
func (l *Loader) LastSource() model.Source {
	return l.lastSource
}

// DatabasePath is the resolved SQLite path, whether or not it exists.
func (l *Loader) DatabasePath() string {
	return l.dbPath
}

// determineSource picks the store to read, honoring the force override.
func (l *Loader) determineSource() (model.Source, error) {
	switch l.force {
	case model.SourceSQLite:
		if !l.SQLiteAvailable() {
			return "", errors.New("forced source 'sqlite' is not available")
		}
		return model.SourceSQLite, nil
	case model.SourceFiles:
		if !l.FilesAvailable() {
			return "", errors.New("forced source 'files' is not available")
		}
		return model.SourceFiles, nil
	}

	if l.SQLiteAvailable() {
		return model.SourceSQLite, nil
	}
	if l.FilesAvailable() {
		return model.SourceFiles, nil
	}
	return "", ErrNoDataSource
}

// Validate reports whether any data source is reachable.
func (l *Loader) Validate() bool {
	_, err := l.determineSource()
	return err == nil
}

// Sessions loads sessions from the preferred source, newest first.
// limit <= 0 loads all.
func (l *Loader) Sessions(limit int) ([]model.Session, error) {
	src, err := l.determineSource()
	if err != nil {
		return nil, err
	}
	l.lastSource = src

	if src == model.SourceFiles {
		return l.files.Sessions(limit)
	}

	db, err := OpenDB(l.dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return db.Sessions(limit)
}

// ActiveWorkflows returns the workflows with recent message activity. The
// hierarchy query only exists for SQLite; ok is false when the file store is
// in use and the caller must derive activity from session end times instead.
func (l *Loader) ActiveWorkflows(threshold time.Duration, now time.Time) ([]model.Workflow, bool, error) {
	src, err := l.determineSource()
	if err != nil {
		return nil, false, err
	}
	l.lastSource = src
	if src != model.SourceSQLite {
		return nil, false, nil
	}

	db, err := OpenDB(l.dbPath)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = db.Close() }()

	workflows, err := db.ActiveWorkflows(threshold, now)
	return workflows, true, err
}

// MostRecentWorkflow is the SQLite fallback view when nothing is active.
// ok is false when unsupported or when no session has message data.
func (l *Loader) MostRecentWorkflow() (model.Workflow, bool, error) {
	src, err := l.determineSource()
	if err != nil {
		return model.Workflow{}, false, err
	}
	l.lastSource = src
	if src != model.SourceSQLite {
		return model.Workflow{}, false, nil
	}

	db, err := OpenDB(l.dbPath)
	if err != nil {
		return model.Workflow{}, false, err
	}
	defer func() { _ = db.Close() }()
	return db.MostRecentWorkflow()
}

// ToolUsage aggregates tool invocation stats for the given sessions. Only the
// SQLite store records tool parts; other sources yield nothing.
func (l *Loader) ToolUsage(sessionIDs []string) ([]model.ToolUsageStats, error) {
	if len(sessionIDs) == 0 || !l.SQLiteAvailable() {
		return nil, nil
	}
	if l.force == model.SourceFiles {
		return nil, nil
	}

	db, err := OpenDB(l.dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return db.ToolUsage(sessionIDs)
}

// DatabaseStats reports SQLite store statistics. exists is false when the
// database file is missing.
func (l *Loader) DatabaseStats() (Stats, bool, error) {
	if !l.SQLiteAvailable() {
		return Stats{}, false, nil
	}
	db, err := OpenDB(l.dbPath)
	if err != nil {
		return Stats{}, false, err
	}
	defer func() { _ = db.Close() }()

	stats, err := db.Stats()
	return stats, err == nil, err
}
