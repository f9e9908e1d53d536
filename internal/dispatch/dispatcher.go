package dispatch

import (
	"sync"

	"github.com/rickgao/notify-channel/internal/notification"
)

// Dispatcher routes envelopes to the handlers registered for their kind.
type Dispatcher struct {
	mu    sync.RWMutex
	kinds map[notification.Kind]*Registry[notification.Envelope]
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		kinds: make(map[notification.Kind]*Registry[notification.Envelope]),
	}
}

// On registers a handler for an exact kind.
func (d *Dispatcher) On(kind notification.Kind, handler func(notification.Envelope)) Disposer {
	return d.registry(kind).Add(handler)
}

// Dispatch invokes the handlers of env.Kind synchronously, in registration
// order, and returns the number of handlers invoked. A kind without
// handlers is a no-op.
func (d *Dispatcher) Dispatch(env notification.Envelope) int {
	d.mu.RLock()
	reg, ok := d.kinds[env.Kind]
	d.mu.RUnlock()

	if !ok {
		return 0
	}
	return reg.Emit(env)
}

// Handlers returns the number of handlers registered for a kind.
func (d *Dispatcher) Handlers(kind notification.Kind) int {
	d.mu.RLock()
	reg, ok := d.kinds[kind]
	d.mu.RUnlock()

	if !ok {
		return 0
	}
	return reg.Len()
}

// registry returns the registry for a kind, creating it on first use.
// Registries are never removed so disposers stay valid.
func (d *Dispatcher) registry(kind notification.Kind) *Registry[notification.Envelope] {
	d.mu.RLock()
	reg, ok := d.kinds[kind]
	d.mu.RUnlock()
	if ok {
		return reg
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if reg, ok := d.kinds[kind]; ok {
		return reg
	}
	reg = NewRegistry[notification.Envelope]()
	d.kinds[kind] = reg
	return reg
}

// Observers is the registry of connection-change callbacks.
type Observers struct {
	reg *Registry[bool]
}

// NewObservers creates an empty observer registry.
func NewObservers() *Observers {
	return &Observers{reg: NewRegistry[bool]()}
}

// Add registers a callback invoked with true on connect and false on disconnect.
func (o *Observers) Add(fn func(connected bool)) Disposer {
	return o.reg.Add(fn)
}

// Notify reports a transition to every observer in registration order.
func (o *Observers) Notify(connected bool) int {
	return o.reg.Emit(connected)
}

// Len returns the number of registered observers.
func (o *Observers) Len() int {
	return o.reg.Len()
}
