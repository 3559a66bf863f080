package pricing

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// modelsDevPayload mirrors the subset of the models.dev catalog we consume.
type modelsDevPayload struct {
	Providers map[string]modelsDevProvider `json:"providers"`
}

type modelsDevProvider struct {
	Models map[string]modelsDevModel `json:"models"`
}

type modelsDevModel struct {
	Cost  modelsDevCost  `json:"cost"`
	Limit modelsDevLimit `json:"limit"`
}

type modelsDevCost struct {
	Prompt          float64 `json:"prompt"`
	Completion      float64 `json:"completion"`
	InputCacheWrite float64 `json:"input_cache_write"`
	InputCacheRead  float64 `json:"input_cache_read"`
}

type modelsDevLimit struct {
	Context int64 `json:"context"`
}

// MapModelsDev converts a raw models.dev payload into overlay form. Each model
// is keyed both bare and provider-prefixed (lowercase); when two providers list
// the same bare model ID, the lexicographically first provider wins. Providers
// and models are walked in sorted order so the same payload always maps to the
// same table. A payload that does not match the expected shape yields an empty
// table, never an error.
func MapModelsDev(payload []byte) RawTable {
	var parsed modelsDevPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return RawTable{}
	}

	result := make(RawTable)
	providerIDs := lo.Keys(parsed.Providers)
	sort.Strings(providerIDs)
	for _, providerID := range providerIDs {
		provider := parsed.Providers[providerID]
		modelIDs := lo.Keys(provider.Models)
		sort.Strings(modelIDs)
		for _, modelID := range modelIDs {
			m := provider.Models[modelID]
			input := m.Cost.Prompt
			output := m.Cost.Completion
			cacheWrite := m.Cost.InputCacheWrite
			cacheRead := m.Cost.InputCacheRead
			window := m.Limit.Context
			quota := 0.0 // not published by models.dev

			overlay := Overlay{
				Input:         &input,
				Output:        &output,
				CacheWrite:    &cacheWrite,
				CacheRead:     &cacheRead,
				ContextWindow: &window,
				SessionQuota:  &quota,
			}

			bare := strings.ToLower(modelID)
			if _, ok := result[bare]; !ok {
				result[bare] = overlay
			}
			prefixed := strings.ToLower(providerID) + "/" + bare
			if _, ok := result[prefixed]; !ok {
				result[prefixed] = overlay
			}
		}
	}
	return result
}
