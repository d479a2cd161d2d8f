package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/statewire/pushgate/internal/metrics"
)

// HubConfig configures the local delivery hub.
type HubConfig struct {
	WriteTimeout time.Duration // Write deadline for frames
	PingInterval time.Duration // Keepalive ping cadence per session
}

// DefaultHubConfig returns sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

var _ Client = (*Hub)(nil)

// Hub delivers payloads to WebSocket connections terminated by this
// process. It satisfies Client: Send and Terminate address sessions by
// connection id, and the ingress attaches each accepted socket and
// detaches it when its read side ends. A send to an id with no attached
// socket reports ErrGone, the same signal a remote push endpoint gives
// for a vanished connection.
type Hub struct {
	cfg    HubConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewHub creates an empty hub.
func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultHubConfig().WriteTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = DefaultHubConfig().PingInterval
	}

	return &Hub{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// session wraps one accepted socket with serialized writes.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	stopOnce sync.Once
	done     chan struct{}
}

func (s *session) write(messageType int, data []byte, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteMessage(messageType, data)
}

func (s *session) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Attach registers an accepted socket under a connection id. If the id
// already has a session the old socket is closed; the newest one wins.
func (h *Hub) Attach(connectionID string, conn *websocket.Conn) {
	s := &session{
		conn: conn,
		done: make(chan struct{}),
	}

	h.mu.Lock()
	old := h.sessions[connectionID]
	h.sessions[connectionID] = s
	h.mu.Unlock()

	if old != nil {
		h.closeSession(connectionID, old)
	} else {
		metrics.LocalSessions.Inc()
	}

	go h.keepalive(connectionID, s)

	h.logger.Debug("session attached", "connection_id", connectionID)
}

// Detach forgets the session for a connection id when conn is still the
// attached socket, without closing it. The ingress calls it when the
// read loop returns, at which point the socket is already finished. It
// reports whether conn was the attached session; false means a newer
// socket took over the id and the caller must leave its state alone.
func (h *Hub) Detach(connectionID string, conn *websocket.Conn) bool {
	h.mu.Lock()
	s := h.sessions[connectionID]
	if s == nil || s.conn != conn {
		h.mu.Unlock()
		return false
	}
	delete(h.sessions, connectionID)
	h.mu.Unlock()

	s.stop()
	metrics.LocalSessions.Dec()
	h.logger.Debug("session detached", "connection_id", connectionID)
	return true
}

// Send writes payload as a text frame to the session for connectionID.
func (h *Hub) Send(ctx context.Context, connectionID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	s := h.sessions[connectionID]
	h.mu.RUnlock()

	if s == nil {
		return fmt.Errorf("session %s: %w", connectionID, ErrGone)
	}

	if err := s.write(websocket.TextMessage, payload, h.cfg.WriteTimeout); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Terminate closes the session for connectionID with a normal-closure
// handshake and removes it from the hub.
func (h *Hub) Terminate(ctx context.Context, connectionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	s := h.sessions[connectionID]
	delete(h.sessions, connectionID)
	h.mu.Unlock()

	if s == nil {
		return fmt.Errorf("session %s: %w", connectionID, ErrGone)
	}

	h.closeSession(connectionID, s)
	metrics.LocalSessions.Dec()
	return nil
}

// Len returns the number of attached sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close terminates every attached session. Used on daemon shutdown.
func (h *Hub) Close() error {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for id, s := range sessions {
		h.closeSession(id, s)
	}
	metrics.LocalSessions.Sub(float64(len(sessions)))
	return nil
}

func (h *Hub) closeSession(connectionID string, s *session) {
	s.stop()

	// Send close message
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err := s.conn.Close(); err != nil {
		h.logger.Debug("close socket", "connection_id", connectionID, "error", err)
	}
}

// keepalive pings the session until it stops, so idle sockets survive
// intermediaries that reap quiet connections.
func (h *Hub) keepalive(connectionID string, s *session) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				h.logger.Debug("failed to send ping", "connection_id", connectionID, "error", err)
			}
		}
	}
}
