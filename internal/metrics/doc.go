// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Channel connection state, connects, drops and reconnect attempts
//   - Subscribe requests and dispatched notifications per kind
//   - Handler panics recovered by the session
//   - Archive queue depth, inserted rows and write errors
//
// Collectors live on a private registry so tests and embedders can create
// more than one Metrics without clashing on the default registry.
package metrics
