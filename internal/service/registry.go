package service

import (
	"sync"

	"github.com/dshills/xmlindex/internal/config"
)

// Registry hands out one Facade per normalized project path (§9 "replace
// process-wide singletons with a registry keyed by normalized project
// path"), so two callers asking about the same project always share the
// same lifecycle object.
type Registry struct {
	mu       sync.Mutex
	facades  map[string]*Facade
	newDeps  func(projectPath string) Deps
}

// NewRegistry builds a Registry. newDeps is called once per distinct
// project path the first time it's requested, to build that project's
// Deps (its config and model provider).
func NewRegistry(newDeps func(projectPath string) Deps) *Registry {
	return &Registry{
		facades: make(map[string]*Facade),
		newDeps: newDeps,
	}
}

// Get returns the Facade for projectPath, creating it on first use.
func (r *Registry) Get(projectPath string) (*Facade, error) {
	norm, err := config.NormalizeProjectPath(projectPath)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.facades[norm]; ok {
		return f, nil
	}
	f := New(norm, r.newDeps(norm))
	r.facades[norm] = f
	return f, nil
}

// Remove stops and evicts the Facade for projectPath, if one exists.
func (r *Registry) Remove(projectPath string) {
	norm, err := config.NormalizeProjectPath(projectPath)
	if err != nil {
		return
	}

	r.mu.Lock()
	f, ok := r.facades[norm]
	delete(r.facades, norm)
	r.mu.Unlock()

	if ok {
		f.Stop()
	}
}

// StopAll stops and evicts every registered Facade, in no particular
// order. Intended for process shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	facades := make([]*Facade, 0, len(r.facades))
	for _, f := range r.facades {
		facades = append(facades, f)
	}
	r.facades = make(map[string]*Facade)
	r.mu.Unlock()

	for _, f := range facades {
		f.Stop()
	}
}
