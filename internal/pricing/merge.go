package pricing

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// Overlay is one model's pricing as supplied by a single source. Pointer
// fields distinguish "field not supplied" from an explicit zero, which is what
// makes field-level merging possible.
type Overlay struct {
	Input         *float64 `json:"input,omitempty"`
	Output        *float64 `json:"output,omitempty"`
	CacheWrite    *float64 `json:"cacheWrite,omitempty"`
	CacheRead     *float64 `json:"cacheRead,omitempty"`
	ContextWindow *int64   `json:"contextWindow,omitempty"`
	SessionQuota  *float64 `json:"sessionQuota,omitempty"`
}

// RawTable maps model IDs to per-source pricing overlays.
type RawTable map[string]Overlay

func overlayFromPricing(p ModelPricing) Overlay {
	return Overlay{
		Input:         &p.Input,
		Output:        &p.Output,
		CacheWrite:    &p.CacheWrite,
		CacheRead:     &p.CacheRead,
		ContextWindow: &p.ContextWindow,
		SessionQuota:  &p.SessionQuota,
	}
}

func (o Overlay) apply(base Overlay) Overlay {
	if o.Input != nil {
		base.Input = o.Input
	}
	if o.Output != nil {
		base.Output = o.Output
	}
	if o.CacheWrite != nil {
		base.CacheWrite = o.CacheWrite
	}
	if o.CacheRead != nil {
		base.CacheRead = o.CacheRead
	}
	if o.ContextWindow != nil {
		base.ContextWindow = o.ContextWindow
	}
	if o.SessionQuota != nil {
		base.SessionQuota = o.SessionQuota
	}
	return base
}

// Merge combines pricing sources with field-level precedence: remote is the
// fill-only baseline, local overrides remote, and user overrides both. A field
// takes its value from the highest-precedence source that defines it; a source
// that omits a field leaves the lower-precedence value in place.
func Merge(local, user, remote RawTable) RawTable {
	merged := make(RawTable, len(remote)+len(local)+len(user))

	for id, overlay := range remote {
		merged[id] = overlay
	}
	for id, overlay := range local {
		merged[id] = overlay.apply(merged[id])
	}
	for id, overlay := range user {
		merged[id] = overlay.apply(merged[id])
	}

	return merged
}

// Validate converts a merged raw table into a usable Table. Entries missing
// any of the four cost fields are skipped with a warning; missing limits
// default to zero. Validation failures never abort resolution.
func Validate(raw RawTable) Table {
	table := make(Table, len(raw))
	for id, o := range raw {
		if o.Input == nil || o.Output == nil || o.CacheWrite == nil || o.CacheRead == nil {
			log.Printf("warning: skipping incomplete pricing entry for model %q", id)
			continue
		}
		p := ModelPricing{
			Input:      *o.Input,
			Output:     *o.Output,
			CacheWrite: *o.CacheWrite,
			CacheRead:  *o.CacheRead,
		}
		if o.ContextWindow != nil {
			p.ContextWindow = *o.ContextWindow
		}
		if o.SessionQuota != nil {
			p.SessionQuota = *o.SessionQuota
		}
		table[id] = p
	}
	return table
}

// LoadOverlayFile reads a models.json pricing file. Individual entries that
// fail to decode (wrong field types) are skipped with a warning rather than
// failing the whole file. A missing file yields an empty table.
func LoadOverlayFile(path string) (RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RawTable{}, nil
		}
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing pricing file %s: %w", path, err)
	}

	raw := make(RawTable, len(entries))
	for id, blob := range entries {
		var o Overlay
		if err := json.Unmarshal(blob, &o); err != nil {
			log.Printf("warning: skipping invalid pricing entry for model %q in %s: %v", id, path, err)
			continue
		}
		raw[id] = o
	}
	return raw, nil
}
