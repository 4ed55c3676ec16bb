// Package dispatch routes a parsed operation to the adapter for its entity
// type, enforcing the per-type timeout and fallback policy. Adapters never see
// raw chat text, only structured operations.
package dispatch

import (
	"context"
	"sort"
	"sync"

	"growth-chat/internal/models"
)

// EntityAdapter executes one structured operation against an entity service.
// Implementations must honor ctx cancellation and return either a result or
// an error; a result with Success=false carries the service's own failure
// detail and optional retryable hint.
type EntityAdapter interface {
	Execute(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error)
}

// Registry maps entity types to their adapters. Registration happens at
// startup; lookups are concurrent.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.EntityType]EntityAdapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[models.EntityType]EntityAdapter),
	}
}

// Register binds an adapter to an entity type, replacing any previous binding.
func (r *Registry) Register(entityType models.EntityType, adapter EntityAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[entityType] = adapter
}

// Get returns the adapter for entityType, or false if none is registered.
func (r *Registry) Get(entityType models.EntityType) (EntityAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[entityType]
	return a, ok
}

// Types lists the registered entity types in stable order.
func (r *Registry) Types() []models.EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.EntityType, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
