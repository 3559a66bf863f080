// Package model defines the domain types for ocmon sessions and workflows.
package model

// TokenUsage is an immutable snapshot of token counts for one or more
// interactions.
type TokenUsage struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheWrite int64 `json:"cache_write"`
	CacheRead  int64 `json:"cache_read"`
}

// Total is the sum of all four token categories.
func (t TokenUsage) Total() int64 {
	return t.Input + t.Output + t.CacheWrite + t.CacheRead
}

// Add returns the field-wise sum of two usages.
func (t TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		Input:      t.Input + other.Input,
		Output:     t.Output + other.Output,
		CacheWrite: t.CacheWrite + other.CacheWrite,
		CacheRead:  t.CacheRead + other.CacheRead,
	}
}
