// Package connection implements the connection lifecycle manager.
//
// The manager:
//   - Registers connection records when clients connect
//   - Hydrates records from storage with fixed-delay retries
//   - Replaces connection data atomically on request
//   - Delivers payloads through per-endpoint push clients
//   - Cascades cleanup when an endpoint reports a connection gone
package connection
