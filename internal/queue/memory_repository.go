package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by tests and the
// single-binary dev wiring. All methods are safe for concurrent use.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[uuid.UUID]Entry),
	}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	r.entries[entry.ID] = *entry
	return nil
}

func (r *MemoryRepository) NextWaiting(ctx context.Context) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Entry
	for id := range r.entries {
		e := r.entries[id]
		if e.Status != StatusWaiting {
			continue
		}
		if best == nil || less(e, *best) {
			copied := e
			best = &copied
		}
	}

	if best == nil {
		return nil, ErrEntryNotFound
	}
	return best, nil
}

func (r *MemoryRepository) CurrentServing(ctx context.Context) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id := range r.entries {
		e := r.entries[id]
		if e.Status == StatusServing {
			return &e, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to EntryStatus, servedAt *time.Time) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.Status != from {
		return nil, ErrEntryNotFound
	}
	e.Status = to
	if servedAt != nil {
		e.ServedAt = servedAt
	}
	e.UpdatedAt = time.Now()
	r.entries[id] = e
	return &e, nil
}

func (r *MemoryRepository) CountWaitingBySeverity(ctx context.Context) (map[Severity]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Severity]int)
	for _, e := range r.entries {
		if e.Status == StatusWaiting {
			counts[e.Severity]++
		}
	}
	return counts, nil
}

// less orders by severity ascending, then arrival ascending.
func less(a, b Entry) bool {
	if a.Severity != b.Severity {
		return a.Severity < b.Severity
	}
	return a.ArrivalTime.Before(b.ArrivalTime)
}
