package s0_data

import (
	"sync"

	"github.com/wonny/aegis-committee/internal/contracts"
)

// StatusRecorder collects field statuses during one acquisition run.
// It is safe for concurrent use by the collector workers and is frozen
// into a read-only contracts.StatusMap once acquisition completes.
type StatusRecorder struct {
	mu      sync.Mutex
	entries map[contracts.Field]contracts.FieldStatus
	frozen  bool
}

// NewStatusRecorder creates an empty recorder (one per run)
func NewStatusRecorder() *StatusRecorder {
	return &StatusRecorder{entries: make(map[contracts.Field]contracts.FieldStatus)}
}

// Record stores the status of a resolution. A primary success is OK,
// anything else is FAIL with the primary's reason.
func Record[T any](r *StatusRecorder, field contracts.Field, res Resolution[T]) {
	if res.Present && !res.IsFallback {
		r.set(field, contracts.FieldStatus{Status: contracts.StatusOK})
		return
	}
	reason := res.Reason
	if reason == "" {
		reason = ReasonUnavailable
	}
	r.set(field, contracts.FieldStatus{Status: contracts.StatusFail, Reason: reason, Fallback: res.IsFallback})
}

// Fail records a field that was never resolved (e.g. the run was cancelled)
func (r *StatusRecorder) Fail(field contracts.Field, reason string) {
	if reason == "" {
		reason = ReasonUnavailable
	}
	r.set(field, contracts.FieldStatus{Status: contracts.StatusFail, Reason: reason})
}

// Has reports whether field already has an entry
func (r *StatusRecorder) Has(field contracts.Field) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[field]
	return ok
}

// Freeze publishes the read-only map. Later writes are ignored.
func (r *StatusRecorder) Freeze() contracts.StatusMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	return contracts.NewStatusMap(r.entries)
}

func (r *StatusRecorder) set(field contracts.Field, s contracts.FieldStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return
	}
	r.entries[field] = s
}
