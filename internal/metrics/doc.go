// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection registrations, hydrations and teardown cascades
//   - Payload delivery counts and bytes
//   - Gone-connection cleanups
//   - Cached transport clients and local hub sessions
package metrics
