package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Mount is one storage root registered under a fixed prefix.
type Mount interface {
	// Prefix returns the mount prefix, e.g. "/int".
	Prefix() string

	// Label returns a human-readable name.
	Label() string

	// Ready reports whether the mount can serve requests.
	Ready() bool
}

// MountPrefixes lists the prefixes a registry accepts, in display order.
var MountPrefixes = []string{IntPathPrefix, ExtPathPrefix, AnyPathPrefix}

// Registry manages the mounts of one backend.
type Registry struct {
	mounts map[string]Mount
	mu     sync.RWMutex
}

// NewRegistry creates an empty mount registry.
func NewRegistry() *Registry {
	return &Registry{
		mounts: make(map[string]Mount),
	}
}

// Register adds a mount. The alias prefix /any cannot be registered directly.
func (r *Registry) Register(m Mount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := m.Prefix()
	if prefix == AnyPathPrefix || !lo.Contains(MountPrefixes, prefix) {
		return fmt.Errorf("mount prefix '%s' is not allowed", prefix)
	}
	if _, exists := r.mounts[prefix]; exists {
		return fmt.Errorf("mount '%s' already registered", prefix)
	}

	r.mounts[prefix] = m
	return nil
}

// Get returns the mount registered under prefix. The alias /any resolves
// through Primary.
func (r *Registry) Get(prefix string) (Mount, bool) {
	if prefix == AnyPathPrefix {
		m := r.Primary()
		return m, m != nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mounts[prefix]
	return m, ok
}

// All returns all registered mounts ordered by prefix display order.
func (r *Registry) All() []Mount {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := lo.Values(r.mounts)
	sort.Slice(result, func(i, j int) bool {
		return lo.IndexOf(MountPrefixes, result[i].Prefix()) < lo.IndexOf(MountPrefixes, result[j].Prefix())
	})
	return result
}

// Primary returns the mount the /any alias points to: the external mount
// when it is ready, the internal mount otherwise.
func (r *Registry) Primary() Mount {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ext, ok := r.mounts[ExtPathPrefix]; ok && ext.Ready() {
		return ext
	}
	if in, ok := r.mounts[IntPathPrefix]; ok {
		return in
	}
	return nil
}
