// Package registry implements the bounded service-name to log-store
// directory shared by every session of a server.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rzbill/logcache/internal/logstore"
)

var (
	// ErrRegistryFull is returned when a new name would exceed the bound.
	ErrRegistryFull = errors.New("registry full")
	// ErrNotFound is returned when a name is not registered.
	ErrNotFound = errors.New("service not found")
)

// Entry pairs a service name with its store.
type Entry struct {
	Name  string
	Store *logstore.Store
}

// Registry is a bounded, insertion-ordered directory of stores.
type Registry struct {
	mu      sync.Mutex
	max     int
	alloc   logstore.Allocator
	entries []Entry
}

// New returns a registry holding at most max services whose stores draw pages
// from alloc.
func New(max int, alloc logstore.Allocator) *Registry {
	if max <= 0 {
		max = 1
	}
	return &Registry{max: max, alloc: alloc, entries: make([]Entry, 0, max)}
}

// ResolveOrCreate returns the store registered under name, creating it when
// absent and capacity allows. created reports whether a new store was made.
func (r *Registry) ResolveOrCreate(name string) (store *logstore.Store, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(name); i >= 0 {
		return r.entries[i].Store, false, nil
	}
	if len(r.entries) >= r.max {
		return nil, false, ErrRegistryFull
	}
	store = logstore.New(name, r.alloc)
	r.entries = append(r.entries, Entry{Name: name, Store: store})
	return store, true, nil
}

// Lookup returns the store registered under name.
func (r *Registry) Lookup(name string) (*logstore.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(name); i >= 0 {
		return r.entries[i].Store, true
	}
	return nil, false
}

// Remove unregisters name, keeping the order of the remaining entries, and
// hands the removed store to the caller for its final flush and Destroy.
func (r *Registry) Remove(name string) (*logstore.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(name)
	if i < 0 {
		return nil, ErrNotFound
	}
	return r.removeLocked(i), nil
}

// RemoveStore unregisters store only if it is still the one registered under
// its name.
func (r *Registry) RemoveStore(store *logstore.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(store.Name())
	if i < 0 || r.entries[i].Store != store {
		return fmt.Errorf("%w: %s", ErrNotFound, store.Name())
	}
	r.removeLocked(i)
	return nil
}

func (r *Registry) removeLocked(i int) *logstore.Store {
	store := r.entries[i].Store
	copy(r.entries[i:], r.entries[i+1:])
	r.entries[len(r.entries)-1] = Entry{}
	r.entries = r.entries[:len(r.entries)-1]
	return store
}

// Entries returns a snapshot of the registered services in insertion order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Cap returns the registry bound.
func (r *Registry) Cap() int { return r.max }

func (r *Registry) indexLocked(name string) int {
	for i := range r.entries {
		if r.entries[i].Name == name {
			return i
		}
	}
	return -1
}
