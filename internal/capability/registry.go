package capability

import (
	"sort"
	"sync"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// Registry maps capability IDs to invokable handles. It is mutable during
// process startup and immutable after Seal, which makes post-seal lookups
// lock-free and removes registry races between concurrent runs.
type Registry struct {
	mu       sync.RWMutex
	sealed   bool
	caps     map[string]Capability
	keywords map[string][]string
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{
		caps:     make(map[string]Capability),
		keywords: make(map[string][]string),
	}
}

// Register adds a capability. Fails with DuplicateCapability if the ID is
// already present, and with InvalidWorkflow semantics if called after Seal.
func (r *Registry) Register(c Capability) error {
	return r.RegisterWithKeywords(c, nil)
}

// RegisterWithKeywords adds a capability along with the keywords the intent
// analyzer matches requests against.
func (r *Registry) RegisterWithKeywords(c Capability, keywords []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return models.Failuref(models.FailDuplicateCapability,
			"registry sealed; cannot register %q", c.ID())
	}
	if _, ok := r.caps[c.ID()]; ok {
		return models.Failuref(models.FailDuplicateCapability,
			"capability %q already registered", c.ID()).WithCapability(c.ID())
	}
	r.caps[c.ID()] = c
	if len(keywords) > 0 {
		r.keywords[c.ID()] = append([]string{}, keywords...)
	}
	return nil
}

// Seal makes the registry immutable. After Seal, reads take no lock.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry has been sealed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the capability for an ID. Fails with UnknownCapability
// when absent.
func (r *Registry) Lookup(id string) (Capability, error) {
	if !r.Sealed() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	c, ok := r.caps[id]
	if !ok {
		return nil, models.Failuref(models.FailUnknownCapability,
			"capability %q not registered", id).WithCapability(id)
	}
	return c, nil
}

// Has reports whether an ID is registered.
func (r *Registry) Has(id string) bool {
	_, err := r.Lookup(id)
	return err == nil
}

// IDs returns all registered capability IDs, sorted.
func (r *Registry) IDs() []string {
	if !r.Sealed() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	ids := make([]string, 0, len(r.caps))
	for id := range r.caps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Keywords returns the intent-matching keywords for a capability.
func (r *Registry) Keywords(id string) []string {
	if !r.Sealed() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return r.keywords[id]
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	if !r.Sealed() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return len(r.caps)
}
