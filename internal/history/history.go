// Package history records export runs so operators can see when the
// phonebook was last refreshed and why a run failed.
package history

import (
	"context"
	"sync"
	"time"
)

// Status is the outcome of an export run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// DefaultLimit is used when a caller asks for a non-positive number of runs.
const DefaultLimit = 50

// Run describes one export run.
type Run struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Trigger    string    `json:"trigger"`
	Path       string    `json:"path"`
	Records    int       `json:"records"`
	Contacts   int       `json:"contacts"`
	Groups     int       `json:"groups"`
	Rows       int       `json:"rows"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists export runs.
type Store interface {
	Record(ctx context.Context, run Run) error
	// Recent returns at most limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)
}

// MemoryStore keeps the most recent runs in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     []Run // oldest first
	capacity int
}

// NewMemoryStore returns a store holding at most capacity runs.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultLimit
	}
	return &MemoryStore{capacity: capacity}
}

// Record appends run, evicting the oldest entry when full.
func (m *MemoryStore) Record(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)
	if over := len(m.runs) - m.capacity; over > 0 {
		m.runs = append(m.runs[:0:0], m.runs[over:]...)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := min(limit, len(m.runs))
	out := make([]Run, 0, n)
	for i := len(m.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}
