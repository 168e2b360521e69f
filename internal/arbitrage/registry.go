package arbitrage

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Registry holds named passes in registration order. The order is the order
// passes run within an expiry, so it fixes opportunity numbering.
type Registry struct {
	mu     sync.RWMutex
	passes map[string]Pass
	order  []string
}

// NewRegistry returns an empty registry. Call Register to add passes.
func NewRegistry() *Registry {
	return &Registry{passes: make(map[string]Pass)}
}

// DefaultRegistry registers parity, box and butterfly, in that order.
func DefaultRegistry(parityTolerance, boxMinEdge, butterflyMinEdge decimal.Decimal) *Registry {
	r := NewRegistry()
	r.Register(NewParityPass(parityTolerance))
	r.Register(NewBoxPass(boxMinEdge))
	r.Register(NewButterflyPass(butterflyMinEdge))
	return r
}

// Register adds p under p.Name(). Re-registering a name replaces the pass but
// keeps its original position.
func (r *Registry) Register(p Pass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, ok := r.passes[name]; !ok {
		r.order = append(r.order, name)
	}
	r.passes[name] = p
}

// Get returns the pass by name, or an error if not found.
func (r *Registry) Get(name string) (Pass, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.passes[name]
	if !ok {
		return nil, fmt.Errorf("arbitrage pass %q not found", name)
	}
	return p, nil
}

// List returns all registered pass names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Select returns the named passes in registration order regardless of the
// order of names. An empty names list selects every pass.
func (r *Registry) Select(names []string) ([]Pass, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.passes[n]; !ok {
			return nil, fmt.Errorf("arbitrage pass %q not found", n)
		}
		want[n] = true
	}
	out := make([]Pass, 0, len(r.order))
	for _, n := range r.order {
		if len(want) == 0 || want[n] {
			out = append(out, r.passes[n])
		}
	}
	return out, nil
}
