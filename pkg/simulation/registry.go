package simulation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get for names nobody registered
var ErrNotFound = errors.New("simulation not found")

// Factory builds a fresh, unconfigured simulation
type Factory func() Simulation

// Entry describes one registered simulation
type Entry struct {
	Name        string
	Description string
}

// Registry maps simulation names to factories. Names match case-insensitively.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registered
}

type registered struct {
	name    string
	factory Factory
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registered)}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a factory under name. Empty names, nil factories and
// duplicates are rejected.
func (r *Registry) Register(name string, factory Factory) error {
	if key(name) == "" {
		return fmt.Errorf("simulation name is empty")
	}
	if factory == nil {
		return fmt.Errorf("simulation %s has no factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key(name)]; exists {
		return fmt.Errorf("simulation %s already registered", name)
	}
	r.entries[key(name)] = registered{name: name, factory: factory}
	return nil
}

// Get builds a new instance of the named simulation
func (r *Registry) Get(name string) (Simulation, error) {
	r.mu.RLock()
	e, ok := r.entries[key(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrNotFound, name, strings.Join(r.List(), ", "))
	}
	return e.factory(), nil
}

// List returns the registered names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// Entries describes every registered simulation, sorted by name
func (r *Registry) Entries() []Entry {
	names := r.List()
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		sim, err := r.Get(name)
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: name, Description: sim.Description()})
	}
	return out
}

// DefaultRegistry holds the simulations linked into the binary
var DefaultRegistry = NewRegistry()
