package connection

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/statewire/pushgate/internal/transport"
)

// Errors
var (
	ErrInvalidConfig      = errors.New("invalid manager configuration")
	ErrConnectionNotFound = errors.New("connection not found")
)

// Data is the mutable half of a connection record. SetData replaces it
// wholesale; the surrounding record fields stay untouched.
type Data struct {
	Endpoint      string                 `json:"endpoint"`
	Context       map[string]interface{} `json:"context"`
	IsInitialized bool                   `json:"is_initialized"`
}

// Connection is one tracked client connection.
type Connection struct {
	ID        string    `json:"id"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"` // zero = never expires
}

// Clone returns a copy of the record with its own Context map, so callers
// can mutate the result without reaching into shared state.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	out := *c
	out.Data.Context = maps.Clone(c.Data.Context)
	return &out
}

// ConnectEvent carries the identity a client presents when it connects.
// Metadata rides along for upstream handlers; Register pays it no
// attention and always starts the record from a clean slate.
type ConnectEvent struct {
	ID       string                 `json:"id"`
	Endpoint string                 `json:"endpoint"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Store persists connection records. Implementations live in
// internal/storage; all of them key records by connection id under a
// configured namespace.
type Store interface {
	// Get returns the record for id, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Connection, error)

	// Put writes the whole record, replacing any previous version.
	Put(ctx context.Context, conn *Connection) error

	// UpdateData replaces only the data portion of the record for id,
	// leaving creation and expiry timestamps untouched.
	UpdateData(ctx context.Context, id string, data Data) error

	// Delete removes the record for id. Deleting an absent record is
	// not an error.
	Delete(ctx context.Context, id string) error
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	TTL         time.Duration          // Lifetime granted at registration; 0 = records never expire
	Debug       bool                   // Emit per-operation debug logs
	Client      transport.Client       // Optional fixed transport client; bypasses per-endpoint dialing
	PushOptions []transport.PushOption // Options applied to per-endpoint push clients
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TTL: 2 * time.Hour,
	}
}

// HydrateOptions bound the read-retry loop in Hydrate.
type HydrateOptions struct {
	Retries    int           // Extra read attempts after the first
	RetryDelay time.Duration // Fixed wait between attempts
}

// DefaultHydrateOptions returns sensible defaults.
func DefaultHydrateOptions() HydrateOptions {
	return HydrateOptions{
		Retries:    0,
		RetryDelay: 50 * time.Millisecond,
	}
}

// ManagerStats is a point-in-time snapshot of manager activity.
type ManagerStats struct {
	Clients       int    `json:"clients"` // cached transport clients
	Registered    uint64 `json:"registered"`
	Unregistered  uint64 `json:"unregistered"`
	Hydrations    uint64 `json:"hydrations"`
	HydrateMisses uint64 `json:"hydrate_misses"`
	Sends         uint64 `json:"sends"`
	GoneCleanups  uint64 `json:"gone_cleanups"`
	Terminations  uint64 `json:"terminations"`
}
