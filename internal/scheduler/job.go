package scheduler

import (
	"context"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: the scheduled job interface is defined only here
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job once
	Run(ctx context.Context) (Outcome, error)

	// Schedule returns the cron schedule expression (with seconds)
	// Examples: "0 0 9 * * *" (every day at 09:00)
	//           "0 30 8 * * MON"
	Schedule() string
}

// Retrier is implemented by jobs that override the scheduler's retry count.
// A job that must never run twice for one trigger returns 0.
type Retrier interface {
	MaxRetries() int
}

// Outcome counts the items a job run handled
type Outcome struct {
	Processed int `json:"processed"`
	Succeeded int `json:"successCount"`
	Failed    int `json:"errors"`
	Skipped   int `json:"skipped"`
}

// Add sums two outcomes
func (o Outcome) Add(other Outcome) Outcome {
	return Outcome{
		Processed: o.Processed + other.Processed,
		Succeeded: o.Succeeded + other.Succeeded,
		Failed:    o.Failed + other.Failed,
		Skipped:   o.Skipped + other.Skipped,
	}
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory stores job execution history
type JobHistory struct {
	Results []JobResult
}

const historySize = 100

// AddResult adds a job result to history
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	// Keep only the last results
	if len(h.Results) > historySize {
		h.Results = h.Results[len(h.Results)-historySize:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}

	if n <= 0 {
		return []JobResult{}
	}

	out := make([]JobResult, n)
	copy(out, h.Results[len(h.Results)-n:])
	return out
}

// GetFailedResults returns all failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// GetSuccessRate returns the success rate (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}

	successCount := 0
	for _, result := range h.Results {
		if result.Success {
			successCount++
		}
	}

	return float64(successCount) / float64(len(h.Results))
}
