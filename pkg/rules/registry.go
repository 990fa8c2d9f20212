package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// Registry manages evaluation strategies by alert type.
type Registry struct {
	mu         sync.RWMutex
	strategies map[model.AlertType]Strategy
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[model.AlertType]Strategy),
	}
}

// NewDefaultRegistry returns a registry holding a strategy for every known alert type.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []Strategy{OverdueInvoice{}, LowBalance{}, PendingApproval{}} {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a strategy to the registry.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := s.AlertType()
	if _, exists := r.strategies[t]; exists {
		return fmt.Errorf("alert type %q already registered", t)
	}
	r.strategies[t] = s
	return nil
}

// Get returns the strategy for an alert type.
func (r *Registry) Get(t model.AlertType) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[t]
	if !ok {
		return nil, fmt.Errorf("alert type %q: %w", t, model.ErrNotFound)
	}
	return s, nil
}

// List returns all registered alert types in lexical order.
func (r *Registry) List() []model.AlertType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]model.AlertType, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
