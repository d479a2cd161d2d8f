package transport

import "context"

// Client delivers payloads to remote client connections and terminates
// them. Implementations must be safe for concurrent use.
type Client interface {
	// Send pushes payload to the connection identified by connectionID.
	// It returns an error matching ErrGone when the remote side reports
	// the connection as permanently gone.
	Send(ctx context.Context, connectionID string, payload []byte) error

	// Terminate closes the remote connection.
	Terminate(ctx context.Context, connectionID string) error
}
