package repository

import (
	"context"
	"sort"
	"sync"

	"dfp-neo/backend/internal/audit/domain"
)

// MemoryRepository keeps audit events in process. Used in tests and when no database is configured.
type MemoryRepository struct {
	mu     sync.Mutex
	events []*domain.Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, e *domain.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	c := *e
	r.mu.Lock()
	r.events = append(r.events, &c)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Event, int, error) {
	f = f.Normalize()
	r.mu.Lock()
	var matched []*domain.Event
	for _, e := range r.events {
		if f.Matches(e) {
			c := *e
			matched = append(matched, &c)
		}
	}
	r.mu.Unlock()
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

// Actions returns the recorded actions in insertion order.
func (r *MemoryRepository) Actions() []domain.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Action, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}
