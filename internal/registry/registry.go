// Package registry holds the live ad objects of the bridge, one per
// (format, placement) key.
package registry

import (
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/thenexusengine/tne_adtalos/internal/mediation"
)

// ErrNilFactory is returned when GetOrCreate is called without a factory
var ErrNilFactory = errors.New("registry: nil factory")

// Resource is a held ad object; Destroy releases its SDK resources
type Resource interface {
	Destroy()
}

// Key identifies one ad slot within a format's namespace
type Key struct {
	Format      mediation.AdFormat
	PlacementID string
}

func (k Key) String() string {
	return k.Format.Label() + "/" + k.PlacementID
}

// Factory creates the resource for a key on first use
type Factory[T Resource] func() (T, error)

// Observer is notified of registry size changes
type Observer interface {
	InstanceCreated(format mediation.AdFormat)
	InstanceRemoved(format mediation.AdFormat)
}

// Registry is a create-if-absent map of live resources.
// Concurrent GetOrCreate calls for one key run the factory once and all
// observe the same value; calls for different keys do not wait on each other.
type Registry[T Resource] struct {
	mu       sync.RWMutex
	items    map[Key]T
	group    singleflight.Group
	observer Observer
}

// New creates an empty registry
func New[T Resource]() *Registry[T] {
	return &Registry[T]{items: make(map[Key]T)}
}

// SetObserver sets the size-change observer
func (r *Registry[T]) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// GetOrCreate returns the resource under key, creating it with factory if
// absent. created is true only for the caller whose factory ran. Factory
// errors are returned to every waiting caller and are not cached.
func (r *Registry[T]) GetOrCreate(key Key, factory Factory[T]) (value T, created bool, err error) {
	if v, ok := r.Get(key); ok {
		return v, false, nil
	}
	if factory == nil {
		return value, false, ErrNilFactory
	}

	result, err, _ := r.group.Do(key.String(), func() (interface{}, error) {
		// A previous flight may have stored the value after our first lookup
		if v, ok := r.Get(key); ok {
			return v, nil
		}

		inst, err := factory()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.items[key] = inst
		observer := r.observer
		r.mu.Unlock()

		created = true
		if observer != nil {
			observer.InstanceCreated(key.Format)
		}
		return inst, nil
	})
	if err != nil {
		return value, false, err
	}

	return result.(T), created, nil
}

// Get looks up the resource under key without creating it
func (r *Registry[T]) Get(key Key) (T, bool) {
	r.mu.RLock()
	v, ok := r.items[key]
	r.mu.RUnlock()
	return v, ok
}

// Remove destroys and drops the resource under key
func (r *Registry[T]) Remove(key Key) bool {
	r.mu.Lock()
	v, ok := r.items[key]
	if ok {
		delete(r.items, key)
	}
	observer := r.observer
	r.mu.Unlock()

	if !ok {
		return false
	}
	v.Destroy()
	if observer != nil {
		observer.InstanceRemoved(key.Format)
	}
	return true
}

// Clear destroys every held resource and empties the registry. It returns
// the number of resources released. The registry is reusable afterwards.
func (r *Registry[T]) Clear() int {
	r.mu.Lock()
	items := r.items
	r.items = make(map[Key]T)
	observer := r.observer
	r.mu.Unlock()

	// Destroy outside the lock; SDK teardown may call back into the bridge
	for key, v := range items {
		v.Destroy()
		if observer != nil {
			observer.InstanceRemoved(key.Format)
		}
	}
	return len(items)
}

// Len returns the number of held resources
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Keys returns the held keys sorted by format then placement
func (r *Registry[T]) Keys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Format != keys[j].Format {
			return keys[i].Format < keys[j].Format
		}
		return keys[i].PlacementID < keys[j].PlacementID
	})
	return keys
}
