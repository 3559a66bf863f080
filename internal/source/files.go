package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"ocmon/internal/model"
)

// FindSessionDirectories lists the per-session directories under the message
// store root. A missing root yields an empty list, not an error.
func FindSessionDirectories(base string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(base, entry.Name()))
		}
	}
	return dirs, nil
}

// FileStore reads the legacy file-based message store: one directory per
// session, one JSON record per interaction. The assistant process may be
// appending concurrently, so malformed or partially written records are
// silently skipped.
type FileStore struct {
	dir string
}

// NewFileStore creates a reader rooted at the message store directory.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Available reports whether the store directory exists.
func (s *FileStore) Available() bool {
	if s.dir == "" {
		return false
	}
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// Sessions loads every session, newest first. limit <= 0 loads all. Sessions
// with no surviving interactions are dropped.
func (s *FileStore) Sessions(limit int) ([]model.Session, error) {
	dirs, err := FindSessionDirectories(s.dir)
	if err != nil {
		return nil, err
	}

	sessions := make([]model.Session, 0, len(dirs))
	for _, dir := range dirs {
		sess, ok := s.loadSession(dir)
		if ok {
			sessions = append(sessions, sess)
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartTime().After(sessions[j].StartTime())
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// loadSession reads one session directory. Returns false when no interaction
// survives parsing.
func (s *FileStore) loadSession(dir string) (model.Session, bool) {
	sessionID := filepath.Base(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return model.Session{}, false
	}

	var files []model.Interaction
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		f, ok := parseInteractionRecord(filepath.Join(dir, entry.Name()), sessionID)
		if ok {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return model.Session{}, false
	}

	sortByCreated(files)
	return model.Session{
		ID:     sessionID,
		Files:  files,
		Agent:  files[0].Agent,
		Source: model.SourceFiles,
	}, true
}

// parseInteractionRecord reads one interaction file. Records that are not
// JSON objects or whose token total is zero are rejected; there is no role
// filter on this path, the file store only holds assistant output.
func parseInteractionRecord(path, sessionID string) (model.Interaction, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Interaction{}, false
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Interaction{}, false
	}

	tokens := rec.Tokens.usage()
	if tokens.Total() == 0 {
		return model.Interaction{}, false
	}

	modelID := rec.ModelID
	if modelID == "" {
		modelID = "unknown"
	}

	return model.Interaction{
		ID:           filepath.Base(path),
		SessionID:    sessionID,
		ModelID:      modelID,
		Tokens:       tokens,
		Time:         rec.TimeData.timeData(),
		ProjectPath:  rec.ProjectPath,
		Agent:        rec.Agent,
		FinishReason: rec.FinishReason,
		ReportedCost: rec.Cost,
	}, true
}

// sortByCreated orders interactions by creation time, untimestamped first.
// The sort is stable so records with equal timestamps keep directory order.
func sortByCreated(files []model.Interaction) {
	sort.SliceStable(files, func(i, j int) bool {
		var ci, cj int64
		if t := files[i].Time; t != nil && t.Created != nil {
			ci = *t.Created
		}
		if t := files[j].Time; t != nil && t.Created != nil {
			cj = *t.Created
		}
		return ci < cj
	})
}
