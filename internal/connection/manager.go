package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/statewire/pushgate/internal/metrics"
	"github.com/statewire/pushgate/internal/registry"
	"github.com/statewire/pushgate/internal/transport"
)

// Manager orchestrates the lifecycle of client connections: registration
// on connect, hydration on incoming traffic, payload delivery, and
// teardown on disconnect.
type Manager interface {
	// Register stores a fresh record for the connection, replacing any
	// previous record under the same id.
	Register(ctx context.Context, ev ConnectEvent) (*Connection, error)

	// Hydrate loads the record for id, retrying per opts to bridge the
	// window between a client's connect and its first message. Absent
	// and expired records fail with ErrConnectionNotFound.
	Hydrate(ctx context.Context, id string, opts HydrateOptions) (*Connection, error)

	// SetData replaces the mutable data portion of conn's record.
	SetData(ctx context.Context, conn *Connection, data Data) error

	// Send delivers payload to the connection through its endpoint's
	// transport client. When the transport reports the connection gone,
	// Send runs the full Unregister cascade instead of failing.
	Send(ctx context.Context, conn *Connection, payload []byte) error

	// Unregister removes the connection's record and all of its
	// subscriptions. Safe to call more than once.
	Unregister(ctx context.Context, conn *Connection) error

	// Close terminates the transport connection. It never touches the
	// store or the subscription registry.
	Close(ctx context.Context, conn *Connection) error

	// Stats returns a snapshot of manager activity.
	Stats() ManagerStats
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	store  Store
	subs   registry.Registry
	logger *slog.Logger

	// Per-endpoint transport clients, built on first use.
	clientMu  sync.RWMutex
	clients   map[string]transport.Client
	dialGroup singleflight.Group
	dial      func(endpoint string) transport.Client

	registered    atomic.Uint64
	unregistered  atomic.Uint64
	hydrations    atomic.Uint64
	hydrateMisses atomic.Uint64
	sends         atomic.Uint64
	goneCleanups  atomic.Uint64
	terminations  atomic.Uint64
}

// NewManager creates a connection Manager on the given store and
// subscription registry.
func NewManager(cfg ManagerConfig, store Store, subs registry.Registry, logger *slog.Logger) (Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if subs == nil {
		return nil, fmt.Errorf("%w: subscription registry is required", ErrInvalidConfig)
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("%w: ttl must be >= 0", ErrInvalidConfig)
	}

	m := &manager{
		cfg:     cfg,
		store:   store,
		subs:    subs,
		logger:  logger,
		clients: make(map[string]transport.Client),
	}
	m.dial = m.dialPush

	return m, nil
}

// Register stores a fresh record for the connection.
func (m *manager) Register(ctx context.Context, ev ConnectEvent) (*Connection, error) {
	if ev.ID == "" {
		return nil, errors.New("connection id is required")
	}

	now := time.Now()
	conn := &Connection{
		ID: ev.ID,
		Data: Data{
			Endpoint:      ev.Endpoint,
			Context:       map[string]interface{}{},
			IsInitialized: false,
		},
		CreatedAt: now,
		ExpiresAt: expiryDeadline(now, m.cfg.TTL),
	}

	if err := m.store.Put(ctx, conn); err != nil {
		return nil, fmt.Errorf("store connection %s: %w", ev.ID, err)
	}

	m.registered.Add(1)
	metrics.ConnectionsRegistered.Inc()
	if m.cfg.Debug {
		m.logger.Debug("connection registered",
			"connection_id", conn.ID,
			"endpoint", conn.Data.Endpoint,
			"expires_at", conn.ExpiresAt,
		)
	}
	return conn, nil
}

// Hydrate loads the record for id with a bounded fixed-delay read loop.
func (m *manager) Hydrate(ctx context.Context, id string, opts HydrateOptions) (*Connection, error) {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultHydrateOptions().RetryDelay
	}

	m.hydrations.Add(1)
	metrics.HydrationsTotal.Inc()

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			metrics.HydrateRetries.Inc()
			if m.cfg.Debug {
				m.logger.Debug("retrying connection lookup",
					"connection_id", id,
					"attempt", attempt,
					"delay", opts.RetryDelay,
				)
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}

		conn, err := m.store.Get(ctx, id)
		if err != nil {
			// A failed read counts as a miss; the final error notes it.
			lastErr = err
			m.logger.Warn("connection lookup failed",
				"connection_id", id,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		if conn == nil {
			continue
		}
		if conn.Expired(time.Now()) {
			m.hydrateMisses.Add(1)
			metrics.HydrateMisses.Inc()
			return nil, fmt.Errorf("connection %s expired at %s: %w",
				id, conn.ExpiresAt.Format(time.RFC3339), ErrConnectionNotFound)
		}
		return conn, nil
	}

	m.hydrateMisses.Add(1)
	metrics.HydrateMisses.Inc()
	if lastErr != nil {
		return nil, fmt.Errorf("connection %s not found after %d attempts (last error: %v): %w",
			id, opts.Retries+1, lastErr, ErrConnectionNotFound)
	}
	return nil, fmt.Errorf("connection %s not found after %d attempts: %w",
		id, opts.Retries+1, ErrConnectionNotFound)
}

// SetData replaces the data portion of conn's stored record. The caller's
// struct is left untouched.
func (m *manager) SetData(ctx context.Context, conn *Connection, data Data) error {
	if err := m.store.UpdateData(ctx, conn.ID, data); err != nil {
		return fmt.Errorf("update connection %s: %w", conn.ID, err)
	}

	if m.cfg.Debug {
		m.logger.Debug("connection data updated",
			"connection_id", conn.ID,
			"is_initialized", data.IsInitialized,
		)
	}
	return nil
}

// Send delivers payload to conn's endpoint. A gone signal from the
// transport is swallowed and converted into the unregister cascade; every
// other transport error propagates with no cleanup.
func (m *manager) Send(ctx context.Context, conn *Connection, payload []byte) error {
	client := m.clientFor(conn.Data.Endpoint)

	err := client.Send(ctx, conn.ID, payload)
	if err == nil {
		m.sends.Add(1)
		metrics.SendsTotal.Inc()
		metrics.SendBytes.Add(float64(len(payload)))
		return nil
	}

	if errors.Is(err, transport.ErrGone) {
		m.goneCleanups.Add(1)
		metrics.GoneCleanups.Inc()
		m.logger.Info("connection gone, cleaning up",
			"connection_id", conn.ID,
			"endpoint", conn.Data.Endpoint,
		)
		return m.Unregister(ctx, conn)
	}

	return fmt.Errorf("send to connection %s: %w", conn.ID, err)
}

// Unregister removes the record and the subscriptions concurrently. Both
// sides are idempotent, so a partial failure is repaired by calling again;
// there is no compensation for the side that succeeded.
func (m *manager) Unregister(ctx context.Context, conn *Connection) error {
	var g errgroup.Group

	g.Go(func() error {
		if err := m.store.Delete(ctx, conn.ID); err != nil {
			return fmt.Errorf("delete connection %s: %w", conn.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := m.subs.UnsubscribeAll(ctx, conn.ID); err != nil {
			return fmt.Errorf("unsubscribe connection %s: %w", conn.ID, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	m.unregistered.Add(1)
	metrics.ConnectionsUnregistered.Inc()
	if m.cfg.Debug {
		m.logger.Debug("connection unregistered", "connection_id", conn.ID)
	}
	return nil
}

// Close terminates the transport connection for conn. Record and
// subscriptions stay as they are.
func (m *manager) Close(ctx context.Context, conn *Connection) error {
	client := m.clientFor(conn.Data.Endpoint)

	if err := client.Terminate(ctx, conn.ID); err != nil {
		return fmt.Errorf("terminate connection %s: %w", conn.ID, err)
	}

	m.terminations.Add(1)
	metrics.TerminationsTotal.Inc()
	if m.cfg.Debug {
		m.logger.Debug("connection terminated", "connection_id", conn.ID)
	}
	return nil
}

// Stats returns a snapshot of manager activity.
func (m *manager) Stats() ManagerStats {
	m.clientMu.RLock()
	clients := len(m.clients)
	m.clientMu.RUnlock()

	return ManagerStats{
		Clients:       clients,
		Registered:    m.registered.Load(),
		Unregistered:  m.unregistered.Load(),
		Hydrations:    m.hydrations.Load(),
		HydrateMisses: m.hydrateMisses.Load(),
		Sends:         m.sends.Load(),
		GoneCleanups:  m.goneCleanups.Load(),
		Terminations:  m.terminations.Load(),
	}
}

// clientFor returns the transport client for an endpoint. The fixed
// client from the config always wins; otherwise clients are built on
// first use and cached per endpoint, with construction deduplicated so
// concurrent first sends build exactly one client.
func (m *manager) clientFor(endpoint string) transport.Client {
	if m.cfg.Client != nil {
		return m.cfg.Client
	}

	m.clientMu.RLock()
	client, ok := m.clients[endpoint]
	m.clientMu.RUnlock()
	if ok {
		return client
	}

	v, _, _ := m.dialGroup.Do(endpoint, func() (interface{}, error) {
		// A racing flight may have finished while we waited for the
		// read lock above.
		m.clientMu.RLock()
		client, ok := m.clients[endpoint]
		m.clientMu.RUnlock()
		if ok {
			return client, nil
		}

		client = m.dial(endpoint)

		m.clientMu.Lock()
		m.clients[endpoint] = client
		m.clientMu.Unlock()
		metrics.TransportClients.Inc()
		return client, nil
	})
	return v.(transport.Client)
}

// dialPush is the default dial function: an HTTP push client for the
// endpoint, configured with the manager's push options.
func (m *manager) dialPush(endpoint string) transport.Client {
	opts := append([]transport.PushOption{transport.WithLogger(m.logger)}, m.cfg.PushOptions...)
	return transport.NewPushClient(endpoint, opts...)
}
