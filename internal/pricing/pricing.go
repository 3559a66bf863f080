// Package pricing resolves per-model token pricing from layered sources
// (built-in defaults, project file, user overrides, remote catalog).
package pricing

import (
	"strings"
)

// ModelPricing holds per-million-token prices and model limits.
type ModelPricing struct {
	Input         float64
	Output        float64
	CacheWrite    float64
	CacheRead     float64
	ContextWindow int64
	SessionQuota  float64
}

// Table maps model IDs to their validated pricing.
type Table map[string]ModelPricing

// DefaultContextWindow is assumed when a model's window is unknown.
const DefaultContextWindow = 200_000

// builtinPricing is the bundled fallback used when no project models.json exists.
var builtinPricing = map[string]ModelPricing{
	"claude-opus-4-5": {
		Input: 5.00, Output: 25.00, CacheWrite: 6.25, CacheRead: 0.50,
		ContextWindow: 200_000, SessionQuota: 100.0,
	},
	"claude-opus-4-1": {
		Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50,
		ContextWindow: 200_000, SessionQuota: 100.0,
	},
	"claude-sonnet-4-5": {
		Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30,
		ContextWindow: 200_000, SessionQuota: 50.0,
	},
	"claude-sonnet-4": {
		Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30,
		ContextWindow: 200_000, SessionQuota: 50.0,
	},
	"claude-haiku-4-5": {
		Input: 1.00, Output: 5.00, CacheWrite: 1.25, CacheRead: 0.10,
		ContextWindow: 200_000, SessionQuota: 25.0,
	},
	"gpt-5.1-codex": {
		Input: 1.25, Output: 10.00, CacheWrite: 0.00, CacheRead: 0.125,
		ContextWindow: 400_000, SessionQuota: 50.0,
	},
	"gemini-2.5-pro": {
		Input: 1.25, Output: 10.00, CacheWrite: 0.00, CacheRead: 0.31,
		ContextWindow: 1_048_576, SessionQuota: 50.0,
	},
}

// Builtin returns the bundled default pricing as an overlay table, so it can
// participate in the same field-level merge as file-backed sources.
func Builtin() RawTable {
	raw := make(RawTable, len(builtinPricing))
	for id, p := range builtinPricing {
		raw[id] = overlayFromPricing(p)
	}
	return raw
}

// NormalizeModelName strips date suffixes from model identifiers.
// e.g., "claude-opus-4-5-20251101" -> "claude-opus-4-5"
func NormalizeModelName(raw string) string {
	parts := strings.Split(raw, "-")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if isAllDigits(last) && len(last) >= 8 {
			return strings.Join(parts[:len(parts)-1], "-")
		}
	}
	return raw
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Resolve looks up pricing for a model ID with progressively looser matching:
// exact ID, date-normalized ID, then same-family prefix match (a "-extended"
// variant resolves to its base model and vice versa).
func (t Table) Resolve(modelID string) (ModelPricing, bool) {
	if p, ok := t[modelID]; ok {
		return p, true
	}

	normalized := NormalizeModelName(modelID)
	if p, ok := t[normalized]; ok {
		return p, true
	}

	for key, p := range t {
		if !strings.HasPrefix(normalized, key) && !strings.HasPrefix(key, normalized) {
			continue
		}
		if strings.TrimSuffix(key, "-extended") == normalized ||
			strings.TrimSuffix(normalized, "-extended") == key {
			return p, true
		}
	}

	return ModelPricing{}, false
}

// ContextWindowFor returns the context window for a model, falling back to
// DefaultContextWindow when the model is unknown or reports no limit.
func (t Table) ContextWindowFor(modelID string) int64 {
	if p, ok := t.Resolve(modelID); ok && p.ContextWindow > 0 {
		return p.ContextWindow
	}
	return DefaultContextWindow
}
