package state

import (
	"context"
	"sync"

	"github.com/aonescu/kubespresso/internal/types"
)

// Journal keeps an audit trail of decisions. It is never consulted when
// deciding; the resource annotations are the only source of truth.
type Journal interface {
	Record(ctx context.Context, decision types.Decision) error
	Recent(ctx context.Context, limit int) ([]types.Decision, error)
	ForResource(ctx context.Context, kind, namespace, name string, limit int) ([]types.Decision, error)
}

const defaultJournalCapacity = 1000

// In-memory implementation for fallback
type MemoryJournal struct {
	mu        sync.RWMutex
	decisions []types.Decision
	capacity  int
}

func NewMemoryJournal() *MemoryJournal {
	return NewMemoryJournalWithCapacity(defaultJournalCapacity)
}

func NewMemoryJournalWithCapacity(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	return &MemoryJournal{
		decisions: make([]types.Decision, 0),
		capacity:  capacity,
	}
}

func (j *MemoryJournal) Record(_ context.Context, decision types.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.decisions = append(j.decisions, decision)

	// Keep only the newest entries
	if len(j.decisions) > j.capacity {
		j.decisions = j.decisions[len(j.decisions)-j.capacity:]
	}
	return nil
}

// Recent returns up to limit decisions, newest first.
func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]types.Decision, error) {
	return j.collect(limit, func(types.Decision) bool { return true }), nil
}

func (j *MemoryJournal) ForResource(_ context.Context, kind, namespace, name string, limit int) ([]types.Decision, error) {
	return j.collect(limit, func(d types.Decision) bool {
		return d.Kind == kind && d.Namespace == namespace && d.Name == name
	}), nil
}

func (j *MemoryJournal) collect(limit int, match func(types.Decision) bool) []types.Decision {
	j.mu.RLock()
	defer j.mu.RUnlock()

	results := make([]types.Decision, 0)
	for i := len(j.decisions) - 1; i >= 0; i-- {
		if limit > 0 && len(results) >= limit {
			break
		}
		if match(j.decisions[i]) {
			results = append(results, j.decisions[i])
		}
	}
	return results
}

func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.decisions)
}
