package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/statewire/pushgate/internal/auth"
	"github.com/statewire/pushgate/internal/config"
	"github.com/statewire/pushgate/internal/connection"
	"github.com/statewire/pushgate/internal/registry"
	"github.com/statewire/pushgate/internal/storage"
	"github.com/statewire/pushgate/internal/transport"
	"github.com/statewire/pushgate/internal/version"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting pushgate",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"storage_backend", cfg.Storage.Backend,
		"registry_backend", cfg.Registry.Backend,
		"transport_mode", cfg.Transport.Mode,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect the connection store
	var store connection.Store
	var redisClient *redis.Client

	switch cfg.Storage.Backend {
	case "redis":
		logger.Info("connecting to redis",
			"addr", cfg.Storage.Redis.Addr,
			"db", cfg.Storage.Redis.DB,
		)
		redisClient, err = storage.NewRedisClient(cfg.Storage.Redis)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		store = storage.NewRedisStore(redisClient, cfg.Storage.Namespace)
	case "postgres":
		logger.Info("connecting to postgres",
			"host", cfg.Storage.Postgres.Host,
			"port", cfg.Storage.Postgres.Port,
			"database", cfg.Storage.Postgres.Name,
		)
		pool, perr := storage.Connect(ctx, cfg.Storage.Postgres)
		if perr != nil {
			logger.Error("failed to connect to postgres", "error", perr)
			os.Exit(1)
		}
		defer pool.Close()
		pg := storage.NewPostgresStore(pool, cfg.Storage.Namespace)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create connections table", "error", err)
			os.Exit(1)
		}
		store = pg
	default:
		store = storage.NewMemoryStore()
	}

	logger.Info("connection store ready", "backend", cfg.Storage.Backend)

	// Build the subscription registry. The redis registry shares the
	// storage redis settings (and the client, when storage is redis too).
	var subs registry.Registry
	if cfg.Registry.Backend == "redis" {
		if redisClient == nil {
			logger.Info("connecting to redis", "addr", cfg.Storage.Redis.Addr)
			redisClient, err = storage.NewRedisClient(cfg.Storage.Redis)
			if err != nil {
				logger.Error("failed to connect to redis", "error", err)
				os.Exit(1)
			}
			defer redisClient.Close()
		}
		subs = registry.NewRedisRegistry(redisClient, cfg.Storage.Namespace)
	} else {
		subs = registry.NewMemoryRegistry()
	}

	// Create the connection manager
	ttl := cfg.Connections.TTL
	if cfg.Connections.DisableTTL {
		ttl = 0
	}

	mgrCfg := connection.ManagerConfig{
		TTL:   ttl,
		Debug: cfg.Connections.Debug,
	}

	var hub *transport.Hub
	if cfg.Transport.Mode == "local" {
		hub = transport.NewHub(transport.DefaultHubConfig(), logger)
		defer hub.Close()
		mgrCfg.Client = hub
	} else {
		pushOpts := []transport.PushOption{transport.WithTimeout(cfg.Transport.Timeout)}
		if cfg.Transport.AuthToken != "" {
			pushOpts = append(pushOpts, transport.WithAuthToken(cfg.Transport.AuthToken))
		}
		mgrCfg.PushOptions = pushOpts
	}

	mgr, err := connection.NewManager(mgrCfg, store, subs, logger)
	if err != nil {
		logger.Error("failed to create connection manager", "error", err)
		os.Exit(1)
	}

	// Local mode serves the socket ingress plus the push surface peer
	// instances deliver through.
	var ing *ingress
	if hub != nil {
		var validator *auth.Validator
		if cfg.Auth.Enabled {
			validator = auth.NewValidator(cfg.Auth, redisClient, logger)
			if redisClient == nil {
				logger.Warn("auth enabled without redis; token revocation checks are disabled")
			}
			logger.Info("session token auth enabled")
		}
		ing = &ingress{
			mgr:        mgr,
			subs:       subs,
			hub:        hub,
			validator:  validator,
			tokenParam: cfg.Auth.TokenParam,
			endpoint:   cfg.Instance.ID,
			authToken:  cfg.Transport.AuthToken,
			logger:     logger,
		}
	}

	// Gateway server
	gatewayServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Instance.Port),
		Handler: createHandler(mgr, store, ing),
	}

	go func() {
		logger.Info("starting gateway server", "port", cfg.Instance.Port)
		if err := gatewayServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("gateway server error", "error", err)
		}
	}()

	// Metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metricsMux,
	}

	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("pushgate running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Instance.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	gatewayServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("pushgate stopped")
}

// createHandler builds the gateway HTTP surface. ing is nil outside
// local mode.
func createHandler(mgr connection.Manager, store connection.Store, ing *ingress) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Probe the store with a read for an id that never exists.
		if _, err := store.Get(ctx, "healthcheck"); err != nil {
			health.Status = "unhealthy"
			health.Components["store"] = map[string]string{
				"status": "unreachable",
				"error":  err.Error(),
			}
		} else {
			health.Components["store"] = "connected"
		}

		health.Components["manager"] = mgr.Stats()
		if ing != nil {
			health.Components["local_sessions"] = ing.hub.Len()
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mgr.Stats())
	})

	if ing != nil {
		mux.HandleFunc("/ws", ing.handleWS)
		mux.HandleFunc("/connections/", ing.handleConnections)
	}

	return mux
}

// ingress owns the local-mode surfaces: the /ws handshake and the served
// push endpoints.
type ingress struct {
	mgr        connection.Manager
	subs       registry.Registry
	hub        *transport.Hub
	validator  *auth.Validator
	tokenParam string
	endpoint   string
	authToken  string
	logger     *slog.Logger
}

// clientFrame is the envelope clients send over the socket ingress.
type clientFrame struct {
	Type    string                 `json:"type"` // init | subscribe | unsubscribe
	Topic   string                 `json:"topic,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// handleWS owns one client socket: registers the connection, attaches it
// to the hub, then reads frames until the peer goes away.
func (g *ingress) handleWS(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()

	if g.validator != nil {
		tokenString := r.URL.Query().Get(g.tokenParam)
		if tokenString == "" {
			http.Error(w, "missing session token", http.StatusUnauthorized)
			return
		}
		claims, err := g.validator.ValidateToken(r.Context(), tokenString)
		if err != nil {
			g.logger.Warn("handshake rejected", "error", err, "remote_addr", r.RemoteAddr)
			http.Error(w, "invalid session token", http.StatusUnauthorized)
			return
		}
		// A subject claim pins the connection id to the caller's
		// identity, replacing any session it already holds.
		if claims.Subject != "" {
			id = claims.Subject
		}
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	ctx := r.Context()

	conn, err := g.mgr.Register(ctx, connection.ConnectEvent{ID: id, Endpoint: g.endpoint})
	if err != nil {
		g.logger.Error("failed to register connection", "error", err, "connection_id", id)
		ws.Close()
		return
	}

	g.hub.Attach(id, ws)
	g.logger.Info("client connected", "connection_id", id, "remote_addr", r.RemoteAddr)

	defer func() {
		// A reconnect under the same id supersedes this session; its
		// handler owns the record now, so only the current socket tears
		// down shared state.
		if !g.hub.Detach(id, ws) {
			g.logger.Debug("session superseded", "connection_id", id)
			return
		}

		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		if err := g.mgr.Unregister(cleanupCtx, conn); err != nil {
			g.logger.Warn("failed to unregister connection", "error", err, "connection_id", id)
		}
		g.logger.Info("client disconnected", "connection_id", id)
	}()

	// Tell the client its assigned id.
	welcome, _ := json.Marshal(map[string]string{"type": "welcome", "connection_id": id})
	if err := g.mgr.Send(ctx, conn, welcome); err != nil {
		g.logger.Warn("failed to send welcome frame", "error", err, "connection_id", id)
		return
	}

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				g.logger.Warn("websocket read error", "error", err, "connection_id", id)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			g.logger.Warn("dropping malformed frame", "error", err, "connection_id", id)
			continue
		}

		switch frame.Type {
		case "init":
			data := connection.Data{
				Endpoint:      conn.Data.Endpoint,
				Context:       frame.Context,
				IsInitialized: true,
			}
			if data.Context == nil {
				data.Context = map[string]interface{}{}
			}
			if err := g.mgr.SetData(ctx, conn, data); err != nil {
				g.logger.Warn("failed to store connection data", "error", err, "connection_id", id)
				continue
			}
			conn.Data = data
		case "subscribe":
			if frame.Topic == "" {
				continue
			}
			if err := g.subs.Subscribe(ctx, id, frame.Topic); err != nil {
				g.logger.Warn("subscribe failed", "error", err, "connection_id", id, "topic", frame.Topic)
			}
		case "unsubscribe":
			if frame.Topic == "" {
				continue
			}
			if err := g.subs.Unsubscribe(ctx, id, frame.Topic); err != nil {
				g.logger.Warn("unsubscribe failed", "error", err, "connection_id", id, "topic", frame.Topic)
			}
		default:
			g.logger.Debug("ignoring unknown frame", "type", frame.Type, "connection_id", id)
		}
	}
}

// handleConnections serves the same wire surface transport.PushClient
// speaks, backed by hub sessions this instance holds: POST delivers a
// payload, DELETE terminates, unknown session answers 410.
func (g *ingress) handleConnections(w http.ResponseWriter, r *http.Request) {
	if g.authToken != "" && r.Header.Get("Authorization") != "Bearer "+g.authToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/connections/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "connection id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if err := g.hub.Send(r.Context(), id, payload); err != nil {
			g.writeDeliveryError(w, id, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := g.hub.Terminate(r.Context(), id); err != nil {
			g.writeDeliveryError(w, id, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (g *ingress) writeDeliveryError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, transport.ErrGone) {
		http.Error(w, "connection gone", http.StatusGone)
		return
	}
	g.logger.Warn("local delivery failed", "connection_id", id, "error", err)
	http.Error(w, "delivery failed", http.StatusInternalServerError)
}
