// Package source loads opencode session data from the SQLite database or the
// legacy file-based message store.
package source

import "ocmon/internal/model"

// rawTokens mirrors the token block shared by both stores.
type rawTokens struct {
	Input  int64    `json:"input"`
	Output int64    `json:"output"`
	Cache  rawCache `json:"cache"`
}

type rawCache struct {
	Write int64 `json:"write"`
	Read  int64 `json:"read"`
}

func (t rawTokens) usage() model.TokenUsage {
	return model.TokenUsage{
		Input:      t.Input,
		Output:     t.Output,
		CacheWrite: t.Cache.Write,
		CacheRead:  t.Cache.Read,
	}
}

// rawTime carries optional epoch-millisecond timestamps.
type rawTime struct {
	Created   *int64 `json:"created"`
	Completed *int64 `json:"completed"`
}

func (t *rawTime) timeData() *model.TimeData {
	if t == nil {
		return nil
	}
	return &model.TimeData{Created: t.Created, Completed: t.Completed}
}

// fileRecord is one interaction as the legacy file store writes it, one JSON
// file per interaction under storage/message/<session>/.
type fileRecord struct {
	ModelID      string    `json:"modelID"`
	Tokens       rawTokens `json:"tokens"`
	TimeData     *rawTime  `json:"timeData"`
	ProjectPath  string    `json:"projectPath"`
	Agent        string    `json:"agent"`
	FinishReason string    `json:"finishReason"`
	Cost         float64   `json:"cost"`
}

// messageRecord is the JSON blob in the SQLite message.data column.
type messageRecord struct {
	Role    string `json:"role"`
	ModelID string `json:"modelID"`
	Model   *struct {
		ModelID string `json:"modelID"`
	} `json:"model"`
	Tokens rawTokens `json:"tokens"`
	Time   *rawTime  `json:"time"`
	Path   *struct {
		Cwd  string `json:"cwd"`
		Root string `json:"root"`
	} `json:"path"`
	Agent  string  `json:"agent"`
	Finish string  `json:"finish"`
	Cost   float64 `json:"cost"`
}

// modelID resolves the model name from either the top-level field or the
// nested model object, defaulting to "unknown".
func (m messageRecord) modelID() string {
	if m.ModelID != "" {
		return m.ModelID
	}
	if m.Model != nil && m.Model.ModelID != "" {
		return m.Model.ModelID
	}
	return "unknown"
}

// projectPath prefers cwd over the worktree root.
func (m messageRecord) projectPath() string {
	if m.Path == nil {
		return ""
	}
	if m.Path.Cwd != "" {
		return m.Path.Cwd
	}
	return m.Path.Root
}
