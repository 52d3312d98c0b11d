package session

import (
	"context"
	"fmt"
	"sync"
)

// Backend is the minimal store surface the registry depends on.
type Backend interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
	Create(ctx context.Context, sessionID string) error
}

// Registry tracks every session this process has touched. The backing
// store owns history; the registry only answers "which sessions exist"
// and keeps its own recency ordering, independent of store iteration.
type Registry struct {
	mu    sync.Mutex
	store Backend
	known map[string]struct{}
	order []string
}

// NewRegistry creates a registry over the given store backend.
func NewRegistry(store Backend) *Registry {
	return &Registry{
		store: store,
		known: make(map[string]struct{}),
	}
}

// Ensure makes the session usable, creating it in the store when absent.
// Repeated calls with the same id are no-ops. Store failures propagate
// to the caller untouched apart from wrapping.
func (r *Registry) Ensure(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[sessionID]; ok {
		return nil
	}

	exists, err := r.store.Exists(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session backend: %w", err)
	}
	if !exists {
		if err := r.store.Create(ctx, sessionID); err != nil {
			return fmt.Errorf("session backend: %w", err)
		}
	}

	r.known[sessionID] = struct{}{}
	r.order = append(r.order, sessionID)
	return nil
}

// Known returns every ensured session id, most recently created first.
func (r *Registry) Known() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		ids = append(ids, r.order[i])
	}
	return ids
}
