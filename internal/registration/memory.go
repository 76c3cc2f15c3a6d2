package registration

import (
	"context"
	"sync"

	"github.com/temirov/propaudit/internal/audit"
)

// MemoryRegistry keeps registrations in memory, keyed by project root.
type MemoryRegistry struct {
	mutex      sync.Mutex
	registered map[string]struct{}
}

// NewMemoryRegistry constructs a MemoryRegistry with the given projects registered.
func NewMemoryRegistry(projects ...audit.Project) *MemoryRegistry {
	registry := &MemoryRegistry{registered: make(map[string]struct{})}
	for _, project := range projects {
		registry.registered[project.Root] = struct{}{}
	}
	return registry
}

// IsRegistered reports whether project is registered.
func (registry *MemoryRegistry) IsRegistered(executionContext context.Context, project audit.Project) (bool, error) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	_, registered := registry.registered[project.Root]
	return registered, nil
}

// Register records project.
func (registry *MemoryRegistry) Register(executionContext context.Context, project audit.Project) error {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.registered[project.Root] = struct{}{}
	return nil
}

// Unregister forgets project.
func (registry *MemoryRegistry) Unregister(executionContext context.Context, project audit.Project) error {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	delete(registry.registered, project.Root)
	return nil
}
