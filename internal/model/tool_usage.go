package model

// ToolUsageStats aggregates invocation counts for a single tool. Only
// completed and errored invocations count; still-running ones are excluded.
type ToolUsageStats struct {
	Tool         string
	TotalCalls   int
	SuccessCount int
	FailureCount int
}

// SuccessRate is the percentage of calls that completed successfully.
func (t ToolUsageStats) SuccessRate() float64 {
	if t.TotalCalls == 0 {
		return 0
	}
	return float64(t.SuccessCount) / float64(t.TotalCalls) * 100
}
