package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.Instance.Port < 1 || c.Instance.Port > 65535 {
		return fmt.Errorf("instance.port must be between 1 and 65535, got %d", c.Instance.Port)
	}

	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if err := c.Storage.Redis.validate("storage.redis"); err != nil {
			return err
		}
	case "postgres":
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, redis, postgres, got %q", c.Storage.Backend)
	}

	if !validNamespace(c.Storage.Namespace) {
		return fmt.Errorf("storage.namespace %q must be a letter or underscore followed by letters, digits or underscores", c.Storage.Namespace)
	}

	switch c.Registry.Backend {
	case "memory":
	case "redis":
		if err := c.Storage.Redis.validate("storage.redis"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("registry.backend must be one of memory, redis, got %q", c.Registry.Backend)
	}

	if c.Connections.TTL < 0 {
		return errors.New("connections.ttl must be >= 0")
	}
	if c.Connections.HydrateRetries < 0 {
		return errors.New("connections.hydrate_retries must be >= 0")
	}
	if c.Connections.HydrateRetryDelay < 0 {
		return errors.New("connections.hydrate_retry_delay must be >= 0")
	}

	switch c.Transport.Mode {
	case "push", "local":
	default:
		return fmt.Errorf("transport.mode must be one of push, local, got %q", c.Transport.Mode)
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (r *RedisConfig) validate(prefix string) error {
	if r.Addr == "" {
		return fmt.Errorf("%s.addr is required", prefix)
	}
	if r.DB < 0 {
		return fmt.Errorf("%s.db must be >= 0", prefix)
	}
	if r.PoolSize < 1 {
		return fmt.Errorf("%s.pool_size must be >= 1", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// validNamespace reports whether s is usable both as a Redis key prefix
// and as a Postgres table name.
func validNamespace(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
