package batch

import (
	"context"
	"fmt"
	"math"
)

// StatsWindow is how many recent log entries ComputeStats reads
const StatsWindow = 1000

// ComputeStats counts outcomes over the latest StatsWindow log entries.
// SuccessRate is a percentage rounded to one decimal.
func ComputeStats(ctx context.Context, s Store) (Stats, error) {
	logs, err := s.ListLogs(ctx, StatsWindow)
	if err != nil {
		return Stats{}, fmt.Errorf("list logs: %w", err)
	}
	return Summarize(logs), nil
}

// Summarize computes Stats over logs
func Summarize(logs []*LogEntry) Stats {
	var st Stats
	st.TotalImports = len(logs)
	for _, e := range logs {
		switch e.Status {
		case LogSuccess:
			st.SuccessfulImports++
		case LogFailed:
			st.FailedImports++
		case LogProcessing:
			st.ProcessingImports++
		}
	}
	if st.TotalImports > 0 {
		rate := float64(st.SuccessfulImports) / float64(st.TotalImports) * 100
		st.SuccessRate = math.Round(rate*10) / 10
	}
	return st
}
