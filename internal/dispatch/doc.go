// Package dispatch implements the listener registries of the realtime
// channel:
//   - Registry: an ordered set of callbacks with idempotent disposers
//   - Dispatcher: notification kind → Registry of envelope handlers
//   - Observers: Registry of connection-state callbacks
//
// Emission snapshots the registry under its lock and invokes listeners
// outside of it, so listeners may register or dispose (including
// themselves) while being invoked. A listener disposed mid-pass still
// receives the event of that pass if it was already captured.
package dispatch
