package dispatch

import (
	"sync"
)

// Disposer removes a listener. Calling it more than once is a no-op.
type Disposer func()

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Registry is an ordered set of listeners receiving values of type T.
type Registry[T any] struct {
	mu      sync.Mutex
	entries []entry[T]
	nextID  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Add appends a listener and returns its disposer.
func (r *Registry[T]) Add(fn func(T)) Disposer {
	if fn == nil {
		return func() {}
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, entry[T]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

// remove deletes the listener with the given id if still present.
func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			// Copy so snapshots taken earlier keep their view
			entries := make([]entry[T], 0, len(r.entries)-1)
			entries = append(entries, r.entries[:i]...)
			entries = append(entries, r.entries[i+1:]...)
			r.entries = entries
			return
		}
	}
}

// Len returns the number of registered listeners.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// snapshot returns the listeners registered right now, in order.
func (r *Registry[T]) snapshot() []func(T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fns := make([]func(T), len(r.entries))
	for i, e := range r.entries {
		fns[i] = e.fn
	}
	return fns
}

// Emit invokes every listener captured at call time, in registration order,
// and returns how many were invoked. A panicking listener stops the pass and
// the panic propagates to the caller.
func (r *Registry[T]) Emit(v T) int {
	fns := r.snapshot()
	for _, fn := range fns {
		fn(v)
	}
	return len(fns)
}
