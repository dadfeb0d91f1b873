package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/briefops/briefops/internal/provider"
)

var (
	ErrDuplicateCapability = errors.New("capability already registered")
	ErrUnknownCapability   = errors.New("unknown capability")
)

// Registry holds the authoritative capability set. It is populated at
// startup and read-only afterward, so concurrent orchestration runs share it
// safely. Schemas are served in registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	byName  map[string]*Capability
	schemas []provider.ToolSchema
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Capability),
	}
}

// Register adds a capability. A second capability with the same name fails
// with ErrDuplicateCapability and leaves the registry unchanged.
func (r *Registry) Register(c *Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Name == "" {
		return fmt.Errorf("capability has no name")
	}
	if c.Handler == nil {
		return fmt.Errorf("capability %q has no handler", c.Name)
	}
	if _, exists := r.byName[c.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCapability, c.Name)
	}
	r.byName[c.Name] = c
	r.order = append(r.order, c.Name)
	r.schemas = append(r.schemas, c.Schema())
	return nil
}

// Resolve returns the capability for name, or ErrUnknownCapability.
func (r *Registry) Resolve(name string) (*Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
	}
	return c, nil
}

// Schemas returns the tool schemas in registration order. The slice is a
// copy; callers may not mutate registry state through it.
func (r *Registry) Schemas() []provider.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]provider.ToolSchema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Names returns the registered capability names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
