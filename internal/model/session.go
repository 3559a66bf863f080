package model

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/samber/lo"

	"ocmon/internal/pricing"
)

// Source identifies which store a session was loaded from.
type Source string

const (
	SourceSQLite Source = "sqlite"
	SourceFiles  Source = "files"
)

// TimeData holds optional creation/completion timestamps in epoch
// milliseconds, as reported by the assistant.
type TimeData struct {
	Created   *int64
	Completed *int64
}

// DurationMS is completed minus created. Malformed data may produce a
// negative duration; it is reported as-is, not clamped.
func (td *TimeData) DurationMS() (int64, bool) {
	if td == nil || td.Created == nil || td.Completed == nil {
		return 0, false
	}
	return *td.Completed - *td.Created, true
}

// CreatedTime is the creation timestamp as wall-clock time.
func (td *TimeData) CreatedTime() (time.Time, bool) {
	if td == nil || td.Created == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*td.Created), true
}

// CompletedTime is the completion timestamp as wall-clock time.
func (td *TimeData) CompletedTime() (time.Time, bool) {
	if td == nil || td.Completed == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*td.Completed), true
}

// Interaction is one recorded model call. Created once when a raw log record
// is parsed and never mutated; owned by exactly one Session.
type Interaction struct {
	ID           string // file name for the file store, message ID for SQLite
	SessionID    string
	ModelID      string
	Tokens       TokenUsage
	Time         *TimeData
	ProjectPath  string
	Agent        string
	FinishReason string
	// ReportedCost is the provider-reported cost carried in the raw record.
	// Zero means "not computed" and falls through to table pricing.
	ReportedCost float64
}

// RateEligible reports whether this interaction counts toward output-rate
// statistics. Tool-call rounds that produced almost no text are excluded so
// they don't drag the rate toward zero.
func (f Interaction) RateEligible() bool {
	if f.FinishReason == "tool-calls" && f.Tokens.Output < 100 {
		return false
	}
	if f.Tokens.Output <= 0 {
		return false
	}
	d, ok := f.Time.DurationMS()
	return ok && d > 0
}

// CostUSD computes this interaction's cost. A positive provider-reported cost
// wins verbatim (it covers providers missing from the local table); otherwise
// the cost is looked up per-million against the pricing table, and an
// unresolvable model costs zero.
func (f Interaction) CostUSD(table pricing.Table) float64 {
	if f.ReportedCost > 0 {
		return f.ReportedCost
	}

	p, ok := table.Resolve(f.ModelID)
	if !ok {
		return 0
	}

	const million = 1_000_000
	cost := float64(f.Tokens.Input) / million * p.Input
	cost += float64(f.Tokens.Output) / million * p.Output
	cost += float64(f.Tokens.CacheWrite) / million * p.CacheWrite
	cost += float64(f.Tokens.CacheRead) / million * p.CacheRead
	return cost
}

// Session is one continuous agent conversation. Loaders never construct
// sessions with zero surviving interactions.
type Session struct {
	ID         string
	ParentID   string // set only by the SQLite store
	IsSubAgent bool
	Files      []Interaction
	Title      string
	Agent      string
	Source     Source
}

// TotalTokens sums token usage across all interactions.
func (s Session) TotalTokens() TokenUsage {
	var total TokenUsage
	for _, f := range s.Files {
		total = total.Add(f.Tokens)
	}
	return total
}

// StartTime is the earliest interaction creation time, zero if unknown.
func (s Session) StartTime() time.Time {
	var start time.Time
	for _, f := range s.Files {
		if t, ok := f.Time.CreatedTime(); ok && (start.IsZero() || t.Before(start)) {
			start = t
		}
	}
	return start
}

// EndTime is the latest interaction completion time. A zero end time means
// the session is still open, which drives active-workflow detection.
func (s Session) EndTime() time.Time {
	var end time.Time
	for _, f := range s.Files {
		if t, ok := f.Time.CompletedTime(); ok && t.After(end) {
			end = t
		}
	}
	return end
}

// DurationMS is the wall-clock span from start to end, when both are known.
func (s Session) DurationMS() (int64, bool) {
	start, end := s.StartTime(), s.EndTime()
	if start.IsZero() || end.IsZero() {
		return 0, false
	}
	return end.Sub(start).Milliseconds(), true
}

// ProcessingTimeMS sums the active processing duration across interactions.
func (s Session) ProcessingTimeMS() int64 {
	var total int64
	for _, f := range s.Files {
		if d, ok := f.Time.DurationMS(); ok {
			total += d
		}
	}
	return total
}

// ProjectName derives the session's project from the most frequent non-empty
// project path among its interactions.
func (s Session) ProjectName() string {
	counts := make(map[string]int)
	for _, f := range s.Files {
		if f.ProjectPath != "" {
			counts[f.ProjectPath]++
		}
	}
	if len(counts) == 0 {
		return "Unknown"
	}

	best, bestCount := "", 0
	for path, n := range counts {
		if n > bestCount || (n == bestCount && path < best) {
			best, bestCount = path, n
		}
	}
	return filepath.Base(best)
}

// ModelsUsed lists the distinct model IDs seen in this session.
func (s Session) ModelsUsed() []string {
	ids := lo.Uniq(lo.Map(s.Files, func(f Interaction, _ int) string { return f.ModelID }))
	sort.Strings(ids)
	return ids
}

// TotalCost sums interaction costs against the pricing table.
func (s Session) TotalCost(table pricing.Table) float64 {
	var total float64
	for _, f := range s.Files {
		total += f.CostUSD(table)
	}
	return total
}

// LatestActivity is the most recent interaction creation time, zero if the
// session has no timestamped interactions.
func (s Session) LatestActivity() time.Time {
	var latest time.Time
	for _, f := range s.Files {
		if t, ok := f.Time.CreatedTime(); ok && t.After(latest) {
			latest = t
		}
	}
	return latest
}

// DisplayTitle is the session title truncated for table display, falling back
// to the session ID. Truncation counts runes so multi-byte titles are never
// split mid-character.
func (s Session) DisplayTitle() string {
	if s.Title == "" {
		return s.ID
	}
	if runes := []rune(s.Title); len(runes) > 50 {
		return string(runes[:47]) + "..."
	}
	return s.Title
}

// ModelUsage is the per-model slice of a session's activity.
type ModelUsage struct {
	Interactions int
	Tokens       TokenUsage
	CostUSD      float64
	DurationMS   int64
	// Rates holds output tokens/sec for each rate-eligible interaction.
	Rates []float64
}

// ModelBreakdown groups usage, cost, and rate samples by model ID.
func (s Session) ModelBreakdown(table pricing.Table) map[string]ModelUsage {
	breakdown := make(map[string]ModelUsage)
	for _, f := range s.Files {
		mu := breakdown[f.ModelID]
		mu.Interactions++
		mu.Tokens = mu.Tokens.Add(f.Tokens)
		mu.CostUSD += f.CostUSD(table)
		if d, ok := f.Time.DurationMS(); ok {
			mu.DurationMS += d
		}
		if f.RateEligible() {
			d, _ := f.Time.DurationMS()
			mu.Rates = append(mu.Rates, float64(f.Tokens.Output)/(float64(d)/1000))
		}
		breakdown[f.ModelID] = mu
	}
	return breakdown
}

// OutputRate is output tokens per second of active processing over the
// trailing window ending at now.
func (s Session) OutputRate(window time.Duration, now time.Time) float64 {
	return outputRate(s.Files, window, now)
}

func outputRate(files []Interaction, window time.Duration, now time.Time) float64 {
	cutoff := now.Add(-window)

	var outputTokens, durationMS int64
	for _, f := range files {
		t, ok := f.Time.CreatedTime()
		if !ok || t.Before(cutoff) {
			continue
		}
		outputTokens += f.Tokens.Output
		if d, ok := f.Time.DurationMS(); ok && d > 0 {
			durationMS += d
		}
	}

	if outputTokens == 0 || durationMS == 0 {
		return 0
	}
	return float64(outputTokens) / (float64(durationMS) / 1000)
}
