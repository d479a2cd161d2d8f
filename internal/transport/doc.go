// Package transport delivers payloads to client connections.
//
// Two Client implementations exist:
//   - PushClient forwards payloads over HTTP to a remote push endpoint,
//     one client per endpoint
//   - Hub writes directly to WebSocket sessions terminated by this
//     process
//
// Both report a vanished connection with an error matching ErrGone.
package transport
