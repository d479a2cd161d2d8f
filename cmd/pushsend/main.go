// pushsend is an operator tool for poking a pushgate deployment: it
// registers, hydrates, sends to, closes, and unregisters connections
// against the configured backends.
//
// Usage:
//
//	pushsend -config config.yaml register -id conn-1 -endpoint gw-1.internal:8080
//	pushsend -config config.yaml hydrate -id conn-1 -retries 3
//	pushsend -config config.yaml send -id conn-1 -payload '{"kind":"ping"}'
//	pushsend -config config.yaml close -id conn-1
//	pushsend -config config.yaml unregister -id conn-1
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/statewire/pushgate/internal/config"
	"github.com/statewire/pushgate/internal/connection"
	"github.com/statewire/pushgate/internal/registry"
	"github.com/statewire/pushgate/internal/storage"
	"github.com/statewire/pushgate/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Storage.Backend == "memory" {
		logger.Warn("storage.backend is memory; records exist only for this invocation")
	}

	ctx := context.Background()

	mgr, cleanup, err := buildManager(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build manager", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	switch cmd {
	case "register":
		err = runRegister(ctx, mgr, args)
	case "hydrate":
		err = runHydrate(ctx, mgr, cfg, args)
	case "send":
		err = runSend(ctx, mgr, cfg, args)
	case "unregister":
		err = runUnregister(ctx, mgr, args)
	case "close":
		err = runClose(ctx, mgr, cfg, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// buildManager wires the configured store and registry into a manager.
// The tool always talks to remote endpoints, so transport.mode is
// ignored and the HTTP push client is used regardless.
func buildManager(ctx context.Context, cfg *config.GatewayConfig, logger *slog.Logger) (connection.Manager, func(), error) {
	var (
		store       connection.Store
		redisClient *redis.Client
		cleanups    []func()
	)
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	switch cfg.Storage.Backend {
	case "redis":
		client, err := storage.NewRedisClient(cfg.Storage.Redis)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect redis: %w", err)
		}
		cleanups = append(cleanups, func() { client.Close() })
		redisClient = client
		store = storage.NewRedisStore(client, cfg.Storage.Namespace)
	case "postgres":
		pool, err := storage.Connect(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		pg := storage.NewPostgresStore(pool, cfg.Storage.Namespace)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("ensure schema: %w", err)
		}
		store = pg
	default:
		store = storage.NewMemoryStore()
	}

	var subs registry.Registry
	if cfg.Registry.Backend == "redis" {
		if redisClient == nil {
			client, err := storage.NewRedisClient(cfg.Storage.Redis)
			if err != nil {
				return nil, cleanup, fmt.Errorf("connect redis: %w", err)
			}
			cleanups = append(cleanups, func() { client.Close() })
			redisClient = client
		}
		subs = registry.NewRedisRegistry(redisClient, cfg.Storage.Namespace)
	} else {
		subs = registry.NewMemoryRegistry()
	}

	ttl := cfg.Connections.TTL
	if cfg.Connections.DisableTTL {
		ttl = 0
	}

	pushOpts := []transport.PushOption{transport.WithTimeout(cfg.Transport.Timeout)}
	if cfg.Transport.AuthToken != "" {
		pushOpts = append(pushOpts, transport.WithAuthToken(cfg.Transport.AuthToken))
	}

	mgr, err := connection.NewManager(connection.ManagerConfig{
		TTL:         ttl,
		Debug:       cfg.Connections.Debug,
		PushOptions: pushOpts,
	}, store, subs, logger)
	if err != nil {
		return nil, cleanup, err
	}
	return mgr, cleanup, nil
}

func runRegister(ctx context.Context, mgr connection.Manager, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	id := fs.String("id", "", "connection id")
	endpoint := fs.String("endpoint", "", "push endpoint for the connection")
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}

	conn, err := mgr.Register(ctx, connection.ConnectEvent{ID: *id, Endpoint: *endpoint})
	if err != nil {
		return err
	}
	return printJSON(conn)
}

func runHydrate(ctx context.Context, mgr connection.Manager, cfg *config.GatewayConfig, args []string) error {
	fs := flag.NewFlagSet("hydrate", flag.ExitOnError)
	id := fs.String("id", "", "connection id")
	retries := fs.Int("retries", cfg.Connections.HydrateRetries, "extra read attempts")
	delay := fs.Duration("delay", cfg.Connections.HydrateRetryDelay, "delay between attempts")
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}

	conn, err := mgr.Hydrate(ctx, *id, connection.HydrateOptions{Retries: *retries, RetryDelay: *delay})
	if err != nil {
		return err
	}
	return printJSON(conn)
}

func runSend(ctx context.Context, mgr connection.Manager, cfg *config.GatewayConfig, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	id := fs.String("id", "", "connection id")
	payload := fs.String("payload", "", "payload to deliver")
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}

	conn, err := hydrateRecord(ctx, mgr, cfg, *id)
	if err != nil {
		return err
	}
	if err := mgr.Send(ctx, conn, []byte(*payload)); err != nil {
		return err
	}
	fmt.Printf("sent %d bytes to %s\n", len(*payload), *id)
	return nil
}

func runUnregister(ctx context.Context, mgr connection.Manager, args []string) error {
	fs := flag.NewFlagSet("unregister", flag.ExitOnError)
	id := fs.String("id", "", "connection id")
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}

	// No hydrate first: both sides of the cascade are idempotent, so this
	// doubles as a cleanup for expired or half-deleted records.
	if err := mgr.Unregister(ctx, &connection.Connection{ID: *id}); err != nil {
		return err
	}
	fmt.Printf("unregistered %s\n", *id)
	return nil
}

func runClose(ctx context.Context, mgr connection.Manager, cfg *config.GatewayConfig, args []string) error {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	id := fs.String("id", "", "connection id")
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}

	conn, err := hydrateRecord(ctx, mgr, cfg, *id)
	if err != nil {
		return err
	}
	if err := mgr.Close(ctx, conn); err != nil {
		return err
	}
	fmt.Printf("close signalled for %s\n", *id)
	return nil
}

func hydrateRecord(ctx context.Context, mgr connection.Manager, cfg *config.GatewayConfig, id string) (*connection.Connection, error) {
	return mgr.Hydrate(ctx, id, connection.HydrateOptions{
		Retries:    cfg.Connections.HydrateRetries,
		RetryDelay: cfg.Connections.HydrateRetryDelay,
	})
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: pushsend [-config path] [-verbose] <command> [flags]

commands:
  register    -id <id> -endpoint <addr>          create or replace a connection record
  hydrate     -id <id> [-retries n] [-delay d]   read a record back
  send        -id <id> -payload <data>           deliver a payload
  unregister  -id <id>                           delete record and subscriptions
  close       -id <id>                           ask the endpoint to terminate the session
`)
}
