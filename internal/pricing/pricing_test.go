package pricing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

func TestNormalizeModelName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"claude-opus-4-5-20251101", "claude-opus-4-5"},
		{"claude-sonnet-4-5", "claude-sonnet-4-5"},
		{"gpt-5.1-codex", "gpt-5.1-codex"},
		{"model-1234", "model-1234"}, // too short to be a date
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeModelName(tt.in); got != tt.want {
			t.Errorf("NormalizeModelName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	table := Table{
		"claude-opus-4-5":            {Input: 5, Output: 25},
		"claude-sonnet-4-5-extended": {Input: 6, Output: 30},
	}

	tests := []struct {
		name    string
		modelID string
		wantIn  float64
		wantOK  bool
	}{
		{"exact", "claude-opus-4-5", 5, true},
		{"date suffix stripped", "claude-opus-4-5-20251101", 5, true},
		{"extended resolves to base family", "claude-sonnet-4-5", 6, true},
		{"unknown", "mystery-model", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := table.Resolve(tt.modelID)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.modelID, ok, tt.wantOK)
			}
			if ok && p.Input != tt.wantIn {
				t.Errorf("Resolve(%q).Input = %v, want %v", tt.modelID, p.Input, tt.wantIn)
			}
		})
	}
}

func TestContextWindowFor(t *testing.T) {
	table := Table{
		"big":      {ContextWindow: 1_000_000},
		"windowed": {},
	}
	if got := table.ContextWindowFor("big"); got != 1_000_000 {
		t.Errorf("ContextWindowFor(big) = %d", got)
	}
	if got := table.ContextWindowFor("windowed"); got != DefaultContextWindow {
		t.Errorf("ContextWindowFor(windowed) = %d, want default", got)
	}
	if got := table.ContextWindowFor("nope"); got != DefaultContextWindow {
		t.Errorf("ContextWindowFor(nope) = %d, want default", got)
	}
}

func TestMergePrecedence(t *testing.T) {
	remote := RawTable{
		"m": {Input: fp(1), Output: fp(2), CacheWrite: fp(3), CacheRead: fp(4), ContextWindow: ip(100)},
	}
	local := RawTable{
		"m": {Input: fp(10)},
	}
	user := RawTable{
		"m": {Output: fp(20)},
	}

	merged := Merge(local, user, remote)
	o := merged["m"]

	if *o.Input != 10 {
		t.Errorf("Input = %v, want local override 10", *o.Input)
	}
	if *o.Output != 20 {
		t.Errorf("Output = %v, want user override 20", *o.Output)
	}
	if *o.CacheWrite != 3 || *o.CacheRead != 4 {
		t.Errorf("cache fields should come from remote baseline, got %v/%v", *o.CacheWrite, *o.CacheRead)
	}
	if *o.ContextWindow != 100 {
		t.Errorf("ContextWindow = %v, want remote 100", *o.ContextWindow)
	}
}

func TestMergeUserOverridesLocal(t *testing.T) {
	local := RawTable{"m": {Input: fp(10)}}
	user := RawTable{"m": {Input: fp(99)}}

	merged := Merge(local, user, nil)
	if got := *merged["m"].Input; got != 99 {
		t.Errorf("Input = %v, want user 99", got)
	}
}

func TestMergeSingleSourcePassthrough(t *testing.T) {
	only := RawTable{"m": {Input: fp(7), ContextWindow: ip(100)}}

	got := Merge(only, nil, nil)
	if *got["m"].Input != 7 || *got["m"].ContextWindow != 100 || got["m"].Output != nil {
		t.Errorf("Merge(local only) = %+v", got["m"])
	}

	got = Merge(nil, nil, only)
	if *got["m"].Input != 7 || got["m"].Output != nil {
		t.Errorf("Merge(remote only) = %+v", got["m"])
	}
}

func TestValidateSkipsIncompleteEntries(t *testing.T) {
	raw := RawTable{
		"complete": {Input: fp(1), Output: fp(2), CacheWrite: fp(3), CacheRead: fp(4)},
		"no-cache": {Input: fp(1), Output: fp(2)},
		"limits-only": {ContextWindow: ip(100)},
	}

	table := Validate(raw)
	if len(table) != 1 {
		t.Fatalf("Validate kept %d entries, want 1", len(table))
	}
	if _, ok := table["complete"]; !ok {
		t.Error("complete entry missing from validated table")
	}
}

func TestLoadOverlayFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "models.json")
	content := `{
		"good": {"input": 1.5, "contextWindow": 128000},
		"bad": {"input": "not a number"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	raw, err := LoadOverlayFile(path)
	if err != nil {
		t.Fatalf("LoadOverlayFile: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("got %d entries, want 1 (bad entry skipped)", len(raw))
	}
	if got := *raw["good"].Input; got != 1.5 {
		t.Errorf("Input = %v, want 1.5", got)
	}
	if raw["good"].Output != nil {
		t.Error("Output should be unset for partial overlay")
	}

	missing, err := LoadOverlayFile(filepath.Join(dir, "absent.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing file yielded %d entries", len(missing))
	}

	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOverlayFile(path); err == nil {
		t.Error("malformed file should error")
	}
}

func TestMapModelsDev(t *testing.T) {
	payload := []byte(`{
		"providers": {
			"Anthropic": {
				"models": {
					"Claude-Opus-4-5": {
						"cost": {"prompt": 5, "completion": 25, "input_cache_write": 6.25, "input_cache_read": 0.5},
						"limit": {"context": 200000}
					}
				}
			}
		}
	}`)

	raw := MapModelsDev(payload)
	if len(raw) != 2 {
		t.Fatalf("got %d entries, want bare + prefixed", len(raw))
	}
	o, ok := raw["claude-opus-4-5"]
	if !ok {
		t.Fatal("bare lowercase key missing")
	}
	if *o.Input != 5 || *o.Output != 25 || *o.CacheWrite != 6.25 || *o.CacheRead != 0.5 {
		t.Errorf("cost mapping wrong: %+v", o)
	}
	if *o.ContextWindow != 200000 {
		t.Errorf("ContextWindow = %d", *o.ContextWindow)
	}
	if _, ok := raw["anthropic/claude-opus-4-5"]; !ok {
		t.Error("provider-prefixed key missing")
	}

	if got := MapModelsDev([]byte("garbage")); len(got) != 0 {
		t.Errorf("garbage payload yielded %d entries", len(got))
	}
}

func TestMapModelsDevCollisionIsDeterministic(t *testing.T) {
	payload := []byte(`{
		"providers": {
			"zeta": {"models": {"shared-model": {"cost": {"prompt": 100}}}},
			"alpha": {"models": {"shared-model": {"cost": {"prompt": 1}}}},
			"mid": {"models": {"shared-model": {"cost": {"prompt": 50}}}}
		}
	}`)

	for i := 0; i < 5; i++ {
		raw := MapModelsDev(payload)
		if got := *raw["shared-model"].Input; got != 1 {
			t.Fatalf("run %d: bare key Input = %v, want 1 (first provider in sorted order)", i, got)
		}
	}

	// Provider-prefixed keys keep every provider's own pricing.
	raw := MapModelsDev(payload)
	if got := *raw["zeta/shared-model"].Input; got != 100 {
		t.Errorf("zeta/shared-model Input = %v, want 100", got)
	}
}

func TestGetRemotePayloadFreshCacheSkipsFetch(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seed := Envelope{
		SchemaVersion: envelopeSchemaVersion,
		FetchedAt:     now.Add(-time.Hour),
		ExpiresAt:     now.Add(time.Hour),
		Payload:       []byte(`{"cached":true}`),
	}
	if err := saveEnvelopeAtomic(cachePath, seed); err != nil {
		t.Fatal(err)
	}

	fetched := false
	got := GetRemotePayload(RemoteOptions{
		CachePath: cachePath,
		TTL:       time.Hour,
		Fetch: func(string, time.Duration) ([]byte, error) {
			fetched = true
			return nil, errors.New("should not be called")
		},
		Now: func() time.Time { return now },
	})

	if fetched {
		t.Error("fetch ran despite fresh cache")
	}
	if string(got) != `{"cached":true}` {
		t.Errorf("payload = %s", got)
	}
}

func TestGetRemotePayloadFetchesAndCaches(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := GetRemotePayload(RemoteOptions{
		URL:       "https://models.dev/api.json",
		CachePath: cachePath,
		TTL:       time.Hour,
		Fetch: func(string, time.Duration) ([]byte, error) {
			return []byte(`{"fresh":true}`), nil
		},
		Now: func() time.Time { return now },
	})
	if string(got) != `{"fresh":true}` {
		t.Fatalf("payload = %s", got)
	}

	env := loadEnvelope(cachePath)
	if env == nil {
		t.Fatal("cache not written")
	}
	if !env.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", env.ExpiresAt)
	}
	if env.SchemaVersion != envelopeSchemaVersion {
		t.Errorf("SchemaVersion = %d", env.SchemaVersion)
	}
}

func TestGetRemotePayloadStaleFallback(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	stale := Envelope{
		SchemaVersion: envelopeSchemaVersion,
		FetchedAt:     now.Add(-48 * time.Hour),
		ExpiresAt:     now.Add(-24 * time.Hour),
		Payload:       []byte(`{"stale":true}`),
	}
	if err := saveEnvelopeAtomic(cachePath, stale); err != nil {
		t.Fatal(err)
	}

	fail := func(string, time.Duration) ([]byte, error) {
		return nil, errors.New("network down")
	}

	got := GetRemotePayload(RemoteOptions{
		CachePath:  cachePath,
		TTL:        time.Hour,
		AllowStale: true,
		Fetch:      fail,
		Now:        func() time.Time { return now },
	})
	if string(got) != `{"stale":true}` {
		t.Errorf("AllowStale payload = %s, want stale cache", got)
	}

	got = GetRemotePayload(RemoteOptions{
		CachePath: cachePath,
		TTL:       time.Hour,
		Fetch:     fail,
		Now:       func() time.Time { return now },
	})
	if got != nil {
		t.Errorf("without AllowStale got %s, want nil", got)
	}
}

func TestGetRemotePayloadRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")

	got := GetRemotePayload(RemoteOptions{
		CachePath: cachePath,
		TTL:       time.Hour,
		Fetch: func(string, time.Duration) ([]byte, error) {
			return []byte("<html>503</html>"), nil
		},
	})
	if got != nil {
		t.Errorf("invalid payload accepted: %s", got)
	}
	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Error("invalid payload was cached")
	}
}

func TestGetRemotePayloadLockHeld(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")

	// Simulate another process holding the refresh lock.
	if err := os.WriteFile(cachePath+".lock", nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got := GetRemotePayload(RemoteOptions{
		CachePath:   cachePath,
		TTL:         time.Hour,
		LockTimeout: 150 * time.Millisecond,
		Fetch: func(string, time.Duration) ([]byte, error) {
			t.Error("fetch ran without holding the lock")
			return nil, nil
		},
	})
	if got != nil {
		t.Errorf("got %s, want nil when lock cannot be acquired", got)
	}
}

func TestBuiltinIsComplete(t *testing.T) {
	table := Validate(Builtin())
	if len(table) == 0 {
		t.Fatal("builtin table validated to empty")
	}
	for id, p := range table {
		if p.Input <= 0 || p.Output <= 0 {
			t.Errorf("builtin %q has non-positive base costs: %+v", id, p)
		}
	}
}
