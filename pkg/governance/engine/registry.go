package engine

import (
	"sync"

	"mercator-hq/aegis/pkg/governance"
)

// decisionRegistry retains recent decisions so feedback calls can resolve
// a decision id back to the level and mode that produced it. Capacity is
// bounded; the oldest entry is evicted first.
type decisionRegistry struct {
	mu       sync.Mutex
	capacity int
	byID     map[string]*governance.Decision
	order    []string
	head     int
}

func newDecisionRegistry(capacity int) *decisionRegistry {
	return &decisionRegistry{
		capacity: capacity,
		byID:     make(map[string]*governance.Decision, capacity),
		order:    make([]string, 0, capacity),
	}
}

func (r *decisionRegistry) put(d *governance.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byID) >= r.capacity {
		oldest := r.order[r.head]
		delete(r.byID, oldest)
		r.order[r.head] = d.ID
		r.head = (r.head + 1) % len(r.order)
	} else {
		r.order = append(r.order, d.ID)
	}
	r.byID[d.ID] = d
}

func (r *decisionRegistry) get(id string) (*governance.Decision, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	return d, ok
}

func (r *decisionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
