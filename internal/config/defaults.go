package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstancePort      = 8080
	DefaultStorageBackend    = "memory"
	DefaultNamespace         = "connections"
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPoolSize     = 10
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultRegistryBackend   = "memory"
	DefaultTTL               = 2 * time.Hour
	DefaultHydrateRetryDelay = 50 * time.Millisecond
	DefaultTransportMode     = "push"
	DefaultTransportTimeout  = 10 * time.Second
	DefaultTokenParam        = "token"
	DefaultRevocationPrefix  = "revoked"
	DefaultMetricsPort       = 9100
	DefaultMetricsPath       = "/metrics"
)

func (c *GatewayConfig) applyDefaults() {
	// Instance defaults
	if c.Instance.Port == 0 {
		c.Instance.Port = DefaultInstancePort
	}

	// Storage defaults
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = DefaultNamespace
	}
	applyRedisDefaults(&c.Storage.Redis)
	applyDBDefaults(&c.Storage.Postgres)

	// Registry defaults
	if c.Registry.Backend == "" {
		c.Registry.Backend = DefaultRegistryBackend
	}

	// Connections defaults. HydrateRetries stays 0 unless configured:
	// a single lookup attempt is the documented baseline.
	if c.Connections.TTL == 0 {
		c.Connections.TTL = DefaultTTL
	}
	if c.Connections.HydrateRetryDelay == 0 {
		c.Connections.HydrateRetryDelay = DefaultHydrateRetryDelay
	}

	// Transport defaults
	if c.Transport.Mode == "" {
		c.Transport.Mode = DefaultTransportMode
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = DefaultTransportTimeout
	}

	// Auth defaults
	if c.Auth.TokenParam == "" {
		c.Auth.TokenParam = DefaultTokenParam
	}
	if c.Auth.RevocationPrefix == "" {
		c.Auth.RevocationPrefix = DefaultRevocationPrefix
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyRedisDefaults(r *RedisConfig) {
	if r.Addr == "" {
		r.Addr = DefaultRedisAddr
	}
	if r.PoolSize == 0 {
		r.PoolSize = DefaultRedisPoolSize
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
