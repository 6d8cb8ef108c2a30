package scheduler

import (
	"context"
	"errors"
	"time"
)

// maxHistory is the number of results kept per job
const maxHistory = 100

// Job is a unit of scheduled work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string
	Run(ctx context.Context) error

	// Schedule is a cron expression with a seconds field,
	// e.g. "0 30 16 * * 1-5" (weekdays 16:30)
	Schedule() string
}

// permanentError marks a failure that another attempt cannot fix
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the scheduler records it without retrying.
// 재시도해도 같은 결과가 나오는 실패 (예: 안전 규칙 위반 리포트)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// JobResult is one execution, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// jobHistory keeps the newest maxHistory results, oldest first
type jobHistory struct {
	results []JobResult
}

func (h *jobHistory) add(result JobResult) {
	h.results = append(h.results, result)
	if len(h.results) > maxHistory {
		h.results = h.results[len(h.results)-maxHistory:]
	}
}

// latest returns a copy of the newest n results, oldest first
func (h *jobHistory) latest(n int) []JobResult {
	n = min(n, len(h.results))
	if n <= 0 {
		return []JobResult{}
	}
	out := make([]JobResult, n)
	copy(out, h.results[len(h.results)-n:])
	return out
}

func (h *jobHistory) stats() (runs, failures int, last *JobResult) {
	for _, r := range h.results {
		if !r.Success {
			failures++
		}
	}
	if len(h.results) > 0 {
		l := h.results[len(h.results)-1]
		last = &l
	}
	return len(h.results), failures, last
}
